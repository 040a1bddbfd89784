package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"daugherty.co/certify/fingerprint"
)

// The trusted baseline manifest is explicit persisted state: written by a
// compute run, loaded by a verify run. It is a canonical text document so two
// independent renders of the same manifest are byte-identical.

const (
	baselinePreamble  = "-----BEGIN DAUGHERTY BASELINE-----"
	baselinePostamble = "-----END DAUGHERTY BASELINE-----"
)

// Render produces the canonical baseline document for a manifest. Sections
// are always present and ordering is deterministic.
func Render(m *Manifest) []byte {
	var sb strings.Builder
	sb.WriteString(baselinePreamble)
	sb.WriteString("\n")

	sb.WriteString("META\n")
	sb.WriteString("Algorithm-Version: ")
	sb.WriteString(m.AlgorithmVersion)
	sb.WriteString("\n\n")

	sb.WriteString("LAYERS\n")
	names := make([]string, 0, len(m.Layers))
	for name := range m.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString("Layer: ")
		sb.WriteString(name)
		sb.WriteString("\n")
		sb.WriteString("Hash: ")
		sb.WriteString(m.Layers[name])
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("FILES\n")
	files := append([]fingerprint.FileFingerprint(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	for _, fp := range files {
		sb.WriteString("Path: ")
		sb.WriteString(fp.Path)
		sb.WriteString("\n")
		sb.WriteString("Hash: ")
		sb.WriteString(fp.Hash)
		sb.WriteString("\n")
		sb.WriteString("Raw-Hash: ")
		sb.WriteString(fp.RawHash)
		sb.WriteString("\n")
		sb.WriteString("Mode: ")
		sb.WriteString(string(fp.Mode))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("MISSING\n")
	missing := append([]MissingFile(nil), m.Missing...)
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].Layer == missing[j].Layer {
			return missing[i].Path < missing[j].Path
		}
		return missing[i].Layer < missing[j].Layer
	})
	for _, mf := range missing {
		sb.WriteString("Layer: ")
		sb.WriteString(mf.Layer)
		sb.WriteString("\n")
		sb.WriteString("Path: ")
		sb.WriteString(mf.Path)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(baselinePostamble)
	sb.WriteString("\n")
	return []byte(sb.String())
}

// ParseBaseline parses a baseline document.
func ParseBaseline(data []byte) (*Manifest, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("baseline: BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("baseline: CR line endings not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, errors.New("baseline: trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(baselinePreamble)) {
		return nil, errors.New("baseline: missing preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(baselinePostamble)) {
		return nil, errors.New("baseline: missing postamble")
	}

	sections := map[string]bool{"META": true, "LAYERS": true, "FILES": true, "MISSING": true}
	m := &Manifest{Layers: map[string]string{}}
	var currSection string
	var pendingLayer string   // LAYERS: Layer awaiting its Hash
	var pendingMissing string // MISSING: Layer awaiting its Path
	var currFile *fingerprint.FileFingerprint

	flushFile := func() error {
		if currFile == nil {
			return nil
		}
		if currFile.Hash == "" || currFile.Mode == "" {
			return fmt.Errorf("baseline: incomplete file record for %q", currFile.Path)
		}
		m.Files = append(m.Files, *currFile)
		currFile = nil
		return nil
	}

	reader := bufio.NewReader(bytes.NewReader(data))
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		done := err == io.EOF
		line = strings.TrimSuffix(line, "\n")

		switch {
		case sections[line]:
			if err := flushFile(); err != nil {
				return nil, err
			}
			currSection = line
		case line == "" || line == baselinePreamble || line == baselinePostamble:
			// Separators and frame lines carry no data.
		default:
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				return nil, fmt.Errorf("baseline: malformed line %q", line)
			}
			switch currSection {
			case "META":
				if key == "Algorithm-Version" {
					m.AlgorithmVersion = value
				}
			case "LAYERS":
				switch key {
				case "Layer":
					if pendingLayer != "" {
						return nil, fmt.Errorf("baseline: layer %q has no hash", pendingLayer)
					}
					pendingLayer = value
				case "Hash":
					if pendingLayer == "" {
						return nil, errors.New("baseline: Hash without Layer")
					}
					m.Layers[pendingLayer] = value
					pendingLayer = ""
				}
			case "FILES":
				switch key {
				case "Path":
					if err := flushFile(); err != nil {
						return nil, err
					}
					currFile = &fingerprint.FileFingerprint{Path: value}
				case "Hash":
					if currFile != nil {
						currFile.Hash = value
					}
				case "Raw-Hash":
					if currFile != nil {
						currFile.RawHash = value
					}
				case "Mode":
					if currFile != nil {
						currFile.Mode = fingerprint.Mode(value)
					}
				}
			case "MISSING":
				switch key {
				case "Layer":
					pendingMissing = value
				case "Path":
					if pendingMissing == "" {
						return nil, errors.New("baseline: Path without Layer in MISSING")
					}
					m.Missing = append(m.Missing, MissingFile{Layer: pendingMissing, Path: value})
					pendingMissing = ""
				}
			}
		}
		if done {
			break
		}
	}
	if err := flushFile(); err != nil {
		return nil, err
	}
	if pendingLayer != "" {
		return nil, fmt.Errorf("baseline: layer %q has no hash", pendingLayer)
	}
	if m.AlgorithmVersion == "" {
		return nil, errors.New("baseline: missing Algorithm-Version")
	}
	return m, nil
}

// Save writes the canonical baseline document to path.
func Save(path string, m *Manifest) error {
	return os.WriteFile(path, Render(m), 0o644)
}

// Load reads and parses the baseline document at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBaseline(b)
}
