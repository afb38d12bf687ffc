package datasets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// writeCSV writes a CSV file with the given header and rows to path. An empty
// header writes no header line.
func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if header != "" {
		if _, err := f.WriteString(header + "\n"); err != nil {
			t.Fatalf("failed to write header: %v", err)
		}
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

// writePNG encodes img as PNG at path. The decoder sniffs the format, so the
// .jpg extension used by the asset layout is fine.
func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func solidRGB(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func solidGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// avaClassesCSV is a trimmed AVA action list with the 14/49/17 split.
func avaClassesCSV(t *testing.T, dir string) string {
	t.Helper()
	rows := make([]string, 0, 80)
	for id := 1; id <= 80; id++ {
		typ := TypePersonInteraction
		switch {
		case id <= 14:
			typ = TypePersonMovement
		case id <= 63:
			typ = TypeObjectManipulation
		}
		rows = append(rows, strconv.Itoa(id)+",action "+strconv.Itoa(id)+","+typ)
	}
	path := filepath.Join(dir, "ava_action_list_custom.csv")
	writeCSV(t, path, "label_id,label_name,label_type", rows)
	return path
}

func mustID(t *testing.T, video, ts string, box BBox, frame int) SampleID {
	t.Helper()
	id, err := NewSampleID(video, ts, box, frame)
	if err != nil {
		t.Fatalf("NewSampleID: %v", err)
	}
	return id
}
