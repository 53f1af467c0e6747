// CLAUDE:SUMMARY Imports the CDC ICD-10-CM fixed-width code descriptions file.
package importer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/textnorm"
)

func init() {
	Register(&icd10cmAdapter{})
}

type icd10cmAdapter struct{}

func (a *icd10cmAdapter) ID() string           { return "cdc-icd10cm" }
func (a *icd10cmAdapter) CodeSystemID() string { return "icd10cm" }
func (a *icd10cmAdapter) Description() string  { return "CDC ICD-10-CM code descriptions" }
func (a *icd10cmAdapter) DefaultURL() string {
	return "https://ftp.cdc.gov/pub/Health_Statistics/NCHS/Publications/ICD10CM/2025/icd10cm-Code%20Descriptions-2025.zip"
}
func (a *icd10cmAdapter) License() string { return "public-domain" }

func (a *icd10cmAdapter) Import(ctx context.Context, sourceURL, outputDir string) error {
	return withDownloadDir(outputDir, func(dlDir string) error {
		zipPath := filepath.Join(dlDir, "icd10cm.zip")
		slog.Info("downloading ICD-10-CM", "url", sourceURL)
		if err := downloadFile(ctx, sourceURL, zipPath); err != nil {
			return err
		}

		files, err := unzipFile(zipPath, dlDir)
		if err != nil {
			return err
		}
		codesPath := ""
		for _, f := range files {
			base := strings.ToLower(filepath.Base(f))
			if strings.HasPrefix(base, "icd10cm_codes_") && strings.HasSuffix(base, ".txt") {
				codesPath = f
				break
			}
		}
		if codesPath == "" {
			return fmt.Errorf("icd10cm_codes_*.txt not found in archive")
		}

		f, err := os.Open(codesPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", codesPath, err)
		}
		defer f.Close()

		concepts, err := parseICD10CMCodes(f)
		if err != nil {
			return err
		}

		m := &codesys.Manifest{
			ID:        a.CodeSystemID(),
			URL:       "http://hl7.org/fhir/sid/icd-10-cm",
			Version:   versionFromCodesFile(codesPath),
			Name:      "ICD-10-CM",
			Publisher: "CDC National Center for Health Statistics",
			Source:    a.Description(),
			SourceURL: sourceURL,
			License:   a.License(),
			DataFile:  "data.gob",
		}
		if err := writeCodeSystem(outputDir, m, concepts); err != nil {
			return err
		}
		slog.Info("imported code system", "adapter", a.ID(), "code_system", m.ID, "concepts", len(concepts))
		return nil
	})
}

// parseICD10CMCodes reads lines of the form "A000    Cholera due to ...".
// Codes are stored with the dot after the third character (A00.0).
func parseICD10CMCodes(r io.Reader) (map[string]*codesys.Concept, error) {
	concepts := make(map[string]*codesys.Concept)
	scanner := bufio.NewScanner(textnorm.NewBOMSkippingReader(r))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := textnorm.ChompTrailing(scanner.Text(), ' ')
		if line == "" {
			continue
		}
		raw, display, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		display = strings.TrimSpace(display)
		if raw == "" || display == "" {
			continue
		}
		code := formatICD10Code(raw)
		concepts[code] = &codesys.Concept{Code: code, Display: display}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ICD-10-CM codes: %w", err)
	}
	if len(concepts) == 0 {
		return nil, fmt.Errorf("read ICD-10-CM codes: no concepts")
	}
	return concepts, nil
}

func formatICD10Code(raw string) string {
	raw = strings.ToUpper(raw)
	if len(raw) <= 3 {
		return raw
	}
	return raw[:3] + "." + raw[3:]
}

// versionFromCodesFile extracts "2025" from "icd10cm_codes_2025.txt".
func versionFromCodesFile(path string) string {
	base := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".txt")
	return strings.TrimPrefix(base, "icd10cm_codes_")
}
