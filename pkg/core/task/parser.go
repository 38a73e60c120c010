package task

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// ParseFile reads and parses a task document from disk.
// A missing file fails fast with that diagnosis.
func ParseFile(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, exception.NewCoreError(moduleName, "task file not found: "+path, err)
		}
		return nil, exception.NewCoreError(moduleName, "failed to read task file "+path, err)
	}
	return Parse(data)
}

// Parse parses a task document from raw bytes. Documents are expected in
// UTF-8; on a text-encoding mismatch the parse is retried once assuming
// windows-1251 before giving up. A charset declared in the XML prolog is
// honored either way.
func Parse(data []byte) (*Task, error) {
	t, err := decode(data)
	if err == nil {
		return t, nil
	}
	if !utf8.Valid(data) {
		logger.Warnf("Task document is not valid UTF-8, retrying with windows-1251...")
		recoded, decErr := charmap.Windows1251.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, exception.NewCoreError(moduleName, "failed to transcode task document", decErr)
		}
		if t, retryErr := decode(recoded); retryErr == nil {
			return t, nil
		}
	}
	return nil, exception.NewCoreError(moduleName, "failed to parse task document", err)
}

// decode unmarshals and validates the document.
func decode(data []byte) (*Task, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var t Task
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// charsetReader supports the legacy windows-1251 charset declared in the XML prolog.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	case "utf-8", "":
		return input, nil
	default:
		return nil, exception.NewCoreErrorf(moduleName, "unsupported task document charset: %s", charset)
	}
}

// Marshal serializes a task back to XML. Used by the engine to archive the
// original task document when an isolated run fails.
func Marshal(t *Task) ([]byte, error) {
	type doc struct {
		XMLName xml.Name `xml:"task"`
		Task
	}
	out, err := xml.MarshalIndent(&doc{Task: *t}, "", "  ")
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to serialize task document", err)
	}
	return append([]byte(xml.Header), out...), nil
}
