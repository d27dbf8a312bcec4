package extractor

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// tesseractBin holds the resolved path to the tesseract binary.
// Set by DetectTesseract(). May be just "tesseract" if on PATH.
var tesseractBin string

// tesseractSem limits concurrent Tesseract processes. Tesseract is
// CPU-intensive and too many instances thrash. Sized to the CPU count.
var tesseractSem = make(chan struct{}, runtime.NumCPU())

// DetectTesseract checks whether the tesseract binary is available,
// probing PATH first and then common Windows install directories.
func DetectTesseract() bool {
	if path, err := exec.LookPath("tesseract"); err == nil {
		tesseractBin = path
		log.Printf("Tesseract found on PATH: %s", path)
		return true
	}

	if runtime.GOOS == "windows" {
		candidates := []string{
			`C:\Program Files\Tesseract-OCR\tesseract.exe`,
			`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Tesseract-OCR", "tesseract.exe"),
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				if exec.Command(c, "--version").Run() == nil {
					tesseractBin = c
					log.Printf("Tesseract found at: %s", c)
					return true
				}
			}
		}
	}

	log.Printf("Tesseract OCR not found (install tesseract for image document support)")
	return false
}

// ExtractImage OCRs an image file into a single-page layout result.
func ExtractImage(filePath string) (*AnalyzeResult, error) {
	bin := tesseractBin
	if bin == "" {
		return nil, fmt.Errorf("tesseract binary not found (image documents require OCR)")
	}

	tesseractSem <- struct{}{}
	defer func() { <-tesseractSem }()

	cmd := exec.Command(bin, filePath, "stdout", "-l", "eng", "--psm", "6")
	cmd.Env = append(os.Environ(), "OMP_THREAD_LIMIT=1")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract failed on %s: %w (stderr: %s)",
			filepath.Base(filePath), err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(out.String())
	if len(text) < 2 {
		return nil, fmt.Errorf("tesseract extracted no text from %s", filepath.Base(filePath))
	}

	return &AnalyzeResult{
		Content: text,
		Pages:   []Page{{Number: 1, Span: Span{Offset: 0, Length: len(text)}}},
	}, nil
}
