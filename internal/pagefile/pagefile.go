// Package pagefile reads and writes recorded page dumps: the pageContext
// message the extension sent for one page, stored as .json or mozlz4
// compressed .jsonlz4. The terminal panel replays them offline.
package pagefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lotas/trackerguard/internal/codec"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/server"
)

// Names tried, in order, when Read is given a directory.
var dirCandidates = []string{"page.jsonlz4", "page.json"}

// Read loads a page dump. path may be a file or a directory holding
// page.jsonlz4 or page.json.
func Read(path string) (panel.PageData, error) {
	data, err := readRaw(path)
	if err != nil {
		return panel.PageData{}, err
	}
	return Parse(data)
}

// Parse decodes a page dump, decompressing it first if it carries the
// mozlz4 header.
func Parse(data []byte) (panel.PageData, error) {
	if codec.IsMozLz4(data) {
		var err error
		data, err = codec.Decompress(data)
		if err != nil {
			return panel.PageData{}, fmt.Errorf("decompress page file: %w", err)
		}
	}
	var msg server.IncomingMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return panel.PageData{}, fmt.Errorf("parse page file JSON: %w", err)
	}
	if msg.Type != "" && msg.Type != server.MsgPageContext {
		return panel.PageData{}, fmt.Errorf("page file holds a %q message, want %s", msg.Type, server.MsgPageContext)
	}
	return server.ParsePageContext(msg)
}

// Write records a pageContext message. Files ending in .jsonlz4 are
// compressed.
func Write(path string, msg server.IncomingMsg) error {
	msg.Type = server.MsgPageContext
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode page file: %w", err)
	}
	if strings.HasSuffix(path, ".jsonlz4") {
		if data, err = codec.Compress(data); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readRaw(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}
	if !info.IsDir() {
		return os.ReadFile(path)
	}
	for _, name := range dirCandidates {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("no page file found in %s", path)
}
