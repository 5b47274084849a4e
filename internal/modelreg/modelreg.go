// Package modelreg catalogues the known whisper model files: canonical
// download URLs, checksums, and sizes. It resolves model names to paths
// under a local models directory and sanity-checks files before they are
// handed to the decoder.
package modelreg

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model describes one known whisper model file.
type Model struct {
	// Name is the short identifier used in configuration ("base.en").
	Name string
	// Filename is the on-disk file name.
	Filename string
	// URL is the canonical download location.
	URL string
	// SHA256 is the hex digest of the published file.
	SHA256 string
	// SizeMB is the approximate download size.
	SizeMB int
}

const hfBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// registry lists the published whisper.cpp model builds. Checksums track the
// upstream huggingface repository.
var registry = []Model{
	{Name: "large-v3-turbo", Filename: "ggml-large-v3-turbo.bin", URL: hfBase + "ggml-large-v3-turbo.bin", SHA256: "1fc70f774d38eb169993ac391eea357ef47c88757ef72ee5943879b7e8e2bc69", SizeMB: 1625},
	{Name: "large-v3-turbo-q5_0", Filename: "ggml-large-v3-turbo-q5_0.bin", URL: hfBase + "ggml-large-v3-turbo-q5_0.bin", SHA256: "394221709cd5ad1f40c46e6031ca61bce88931e6e088c188294c6d5a55ffa7e2", SizeMB: 547},
	{Name: "large-v3-turbo-q8_0", Filename: "ggml-large-v3-turbo-q8_0.bin", URL: hfBase + "ggml-large-v3-turbo-q8_0.bin", SHA256: "317eb69c11673c9de1e1f0d459b253999804ec71ac4c23c17ecf5fbe24e259a1", SizeMB: 834},
	{Name: "large-v3", Filename: "ggml-large-v3.bin", URL: hfBase + "ggml-large-v3.bin", SHA256: "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2", SizeMB: 3100},
	{Name: "large-v3-q5_0", Filename: "ggml-large-v3-q5_0.bin", URL: hfBase + "ggml-large-v3-q5_0.bin", SHA256: "d75795ecff3f83b5faa89d1900604ad8c780abd5739fae406de19f23ecd98ad1", SizeMB: 1031},
	{Name: "large-v2", Filename: "ggml-large-v2.bin", URL: hfBase + "ggml-large-v2.bin", SHA256: "9a423fe4d40c82774b6af34115b8b935f34152246eb19e80e376071d3f999487", SizeMB: 2950},
	{Name: "large-v2-q5_0", Filename: "ggml-large-v2-q5_0.bin", URL: hfBase + "ggml-large-v2-q5_0.bin", SHA256: "3a214837221e4530dbc1fe8d734f302af393eb30bd0ed046042ebf4baf70f6f2", SizeMB: 1031},
	{Name: "medium", Filename: "ggml-medium.bin", URL: hfBase + "ggml-medium.bin", SHA256: "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208", SizeMB: 1463},
	{Name: "medium.en", Filename: "ggml-medium.en.bin", URL: hfBase + "ggml-medium.en.bin", SHA256: "cc37e93478338ec7700281a7ac30a10128929eb8f427dda2e865faa8f6da4356", SizeMB: 1530},
	{Name: "medium-q5_0", Filename: "ggml-medium-q5_0.bin", URL: hfBase + "ggml-medium-q5_0.bin", SHA256: "19fea4b380c3a618ec4723c3eef2eb785ffba0d0538cf43f8f235e7b3b34220f", SizeMB: 514},
	{Name: "medium.en-q5_0", Filename: "ggml-medium.en-q5_0.bin", URL: hfBase + "ggml-medium.en-q5_0.bin", SHA256: "76733e26ad8fe1c7a5bf7531a9d41917b2adc0f20f2e4f5531688a8c6cd88eb0", SizeMB: 514},
	{Name: "small", Filename: "ggml-small.bin", URL: hfBase + "ggml-small.bin", SHA256: "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1571299571", SizeMB: 488},
	{Name: "small.en", Filename: "ggml-small.en.bin", URL: hfBase + "ggml-small.en.bin", SHA256: "c6138d6d58ecc8322097e0f987c32f1be8bb0a18532a3f88f734d1bbf9c41e5d", SizeMB: 488},
	{Name: "small-q5_1", Filename: "ggml-small-q5_1.bin", URL: hfBase + "ggml-small-q5_1.bin", SHA256: "ae85e4a935d7a567bd102fe55afc16bb595bdb618e11b2fc7591bc08120411bb", SizeMB: 181},
	{Name: "small.en-q5_1", Filename: "ggml-small.en-q5_1.bin", URL: hfBase + "ggml-small.en-q5_1.bin", SHA256: "bfdff4894dcb76bbf647d56263ea2a96645423f1669176f4844a1bf8e478ad30", SizeMB: 181},
	{Name: "base", Filename: "ggml-base.bin", URL: hfBase + "ggml-base.bin", SHA256: "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe", SizeMB: 148},
	{Name: "base.en", Filename: "ggml-base.en.bin", URL: hfBase + "ggml-base.en.bin", SHA256: "a03779c86df3323075f5e796cb2ce5029f00ec8869eee3fdfb897afe36c6d002", SizeMB: 148},
	{Name: "base-q5_1", Filename: "ggml-base-q5_1.bin", URL: hfBase + "ggml-base-q5_1.bin", SHA256: "422f1ae452ade6f30a004d7e5c6a43195e4433bc370bf23fac9cc591f01a8898", SizeMB: 57},
	{Name: "base.en-q5_1", Filename: "ggml-base.en-q5_1.bin", URL: hfBase + "ggml-base.en-q5_1.bin", SHA256: "4baf70dd0d7c4247ba2b81fafd9c01005ac77c2f9ef064e00dcf195d0e2fdd2f", SizeMB: 57},
	{Name: "tiny", Filename: "ggml-tiny.bin", URL: hfBase + "ggml-tiny.bin", SHA256: "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21", SizeMB: 78},
	{Name: "tiny.en", Filename: "ggml-tiny.en.bin", URL: hfBase + "ggml-tiny.en.bin", SHA256: "921e4cf8686fdd993dcd081a5da5b6c365bfde1162e72b08d75ac75289920b1f", SizeMB: 78},
	{Name: "tiny-q5_1", Filename: "ggml-tiny-q5_1.bin", URL: hfBase + "ggml-tiny-q5_1.bin", SHA256: "818710568da3ca15689e31a743197b520007872ff9576237bda97bd1b469c3d7", SizeMB: 31},
	{Name: "tiny.en-q5_1", Filename: "ggml-tiny.en-q5_1.bin", URL: hfBase + "ggml-tiny.en-q5_1.bin", SHA256: "c77c5766f1cef09b6b7d47f21b546cbddd4157886b3b5d6d4f709e91e66c7c2b", SizeMB: 31},
}

// ErrUnknownModel is returned when a name matches nothing in the catalogue.
var ErrUnknownModel = errors.New("modelreg: unknown model")

// Find looks up a model by name. Filenames work too: "ggml-base.en.bin"
// resolves the same entry as "base.en".
func Find(name string) (Model, error) {
	for _, m := range registry {
		if m.Name == name {
			return m, nil
		}
	}
	normalized := strings.TrimSuffix(strings.TrimPrefix(name, "ggml-"), ".bin")
	for _, m := range registry {
		if m.Name == normalized {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Names returns the catalogue's model names, sorted.
func Names() []string {
	out := make([]string, len(registry))
	for i, m := range registry {
		out[i] = m.Name
	}
	sort.Strings(out)
	return out
}

// Resolve maps a configured model reference to a local file path. An absolute
// or relative path to an existing file is used as-is; otherwise the name is
// looked up in the catalogue and resolved under dir.
func Resolve(dir, ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	m, err := Find(ref)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("modelreg: model %q not found at %s: %w", m.Name, path, err)
	}
	return path, nil
}

// Installed lists catalogue models present under dir, sorted by name.
func Installed(dir string) ([]Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("modelreg: read models dir: %w", err)
	}

	byFilename := make(map[string]Model, len(registry))
	for _, m := range registry {
		byFilename[m.Filename] = m
	}

	var out []Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m, ok := byFilename[e.Name()]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ggml and GGUF container magics, as the first four bytes on disk.
var (
	magicGGML = []byte{0x6c, 0x6d, 0x67, 0x67} // "lmgg", 0x67676d6c little-endian
	magicGGUF = []byte("GGUF")
)

// ValidateFile checks that path looks like a whisper model container. It
// reads only the file header, so it is cheap enough to run at startup.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("modelreg: open model: %w", err)
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("modelreg: model file too short: %w", err)
	}
	if !bytes.Equal(header, magicGGML) && !bytes.Equal(header, magicGGUF) {
		return fmt.Errorf("modelreg: %s is not a ggml or GGUF model file", path)
	}
	return nil
}

// Checksum returns the hex SHA-256 digest of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("modelreg: open model: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("modelreg: hash model: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum hashes the file at path and compares it against the
// catalogue entry for m.
func VerifyChecksum(path string, m Model) error {
	sum, err := Checksum(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(sum, m.SHA256) {
		return fmt.Errorf("modelreg: checksum mismatch for %s: got %s, want %s", path, sum, m.SHA256)
	}
	return nil
}
