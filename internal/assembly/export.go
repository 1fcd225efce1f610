package assembly

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"narrate/internal/services"
	"narrate/internal/store"
)

// ExportResult describes an archive of assembled chapter audio.
type ExportResult struct {
	Work     string `json:"work"`
	Path     string `json:"path"`
	Chapters []int  `json:"chapters"`
	Missing  []int  `json:"missing,omitempty"`
}

// ExportKey names the archive for chapters from..to inside the work directory.
func ExportKey(work string, from, to int) string {
	return fmt.Sprintf("%s_ch_%d_to_%d.zip", work, from, to)
}

// Export packs every assembled chapter in from..to into one deflated ZIP
// stored next to the work. Chapters without audio are reported as missing;
// a range with no audio at all is an error and writes nothing.
func Export(st *store.Store, work string, from, to int) (ExportResult, error) {
	result := ExportResult{Work: work}
	if from < 1 || to < from {
		return result, services.Wrap(services.ErrConfiguration, "export", "range", work,
			fmt.Errorf("invalid chapter range %d..%d", from, to))
	}
	if !st.WorkExists(work) {
		return result, services.Wrap(services.ErrNotFound, "export", "work", work, nil)
	}
	for ch := from; ch <= to; ch++ {
		if st.Exists(store.ChapterScope(work, ch), store.KeyAudio) {
			result.Chapters = append(result.Chapters, ch)
		} else {
			result.Missing = append(result.Missing, ch)
		}
	}
	if len(result.Chapters) == 0 {
		return result, services.Wrap(services.ErrEmptyInput, "export", "collect", work,
			fmt.Errorf("no assembled audio in chapters %d..%d", from, to))
	}

	key := ExportKey(work, from, to)
	err := st.WriteStream(store.WorkScope(work), key, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, ch := range result.Chapters {
			if err := addChapter(zw, st.Path(store.ChapterScope(work, ch), store.KeyAudio), fmt.Sprintf("%s_ch_%d.wav", work, ch)); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return result, err
	}
	result.Path = st.Path(store.WorkScope(work), key)
	return result, nil
}

func addChapter(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
