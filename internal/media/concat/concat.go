package concat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	pcmFormat   = 1
	chunkFrames = 4096
)

var (
	// ErrMissingSegment marks a segment file that does not exist.
	ErrMissingSegment = errors.New("segment missing")
	// ErrInvalidSegment marks a file that is not a PCM WAV.
	ErrInvalidSegment = errors.New("segment is not a pcm wav")
	// ErrFormatMismatch marks segments that disagree on sample rate, channel
	// count, or bit depth.
	ErrFormatMismatch = errors.New("segment format mismatch")
)

// Format is the PCM layout shared by every segment of a chapter.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%d ch/%d bit", f.SampleRate, f.Channels, f.BitDepth)
}

// Info describes a concatenated output.
type Info struct {
	Format
	Segments int           `json:"segments"`
	Frames   int64         `json:"frames"`
	Duration time.Duration `json:"duration"`
}

// Probe reads a WAV header and reports its format and duration.
func Probe(path string) (Format, time.Duration, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Format{}, 0, fmt.Errorf("%w: %s", ErrMissingSegment, path)
	}
	if err != nil {
		return Format{}, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() || dec.WavAudioFormat != pcmFormat {
		return Format{}, 0, fmt.Errorf("%w: %s", ErrInvalidSegment, path)
	}
	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), BitDepth: int(dec.BitDepth)}
	duration, err := dec.Duration()
	if err != nil {
		return format, 0, fmt.Errorf("%w: %s: %v", ErrInvalidSegment, path, err)
	}
	return format, duration, nil
}

// Concat writes paths in order to w as one WAV, with silence between
// consecutive segments. Every segment is checked before any audio is written.
func Concat(w io.WriteSeeker, paths []string, silence time.Duration) (Info, error) {
	var info Info
	if len(paths) == 0 {
		return info, errors.New("concat: no segments")
	}
	for i, path := range paths {
		format, _, err := Probe(path)
		if err != nil {
			return info, err
		}
		if i == 0 {
			info.Format = format
			continue
		}
		if format != info.Format {
			return info, fmt.Errorf("%w: %s is %s, expected %s", ErrFormatMismatch, filepath.Base(path), format, info.Format)
		}
	}

	enc := wav.NewEncoder(w, info.SampleRate, info.BitDepth, info.Channels, pcmFormat)
	pcm := &audio.Format{NumChannels: info.Channels, SampleRate: info.SampleRate}
	gapFrames := int64(silence) * int64(info.SampleRate) / int64(time.Second)

	for i, path := range paths {
		if i > 0 && gapFrames > 0 {
			if err := writeSilence(enc, pcm, info.BitDepth, gapFrames); err != nil {
				return info, err
			}
			info.Frames += gapFrames
		}
		frames, err := copySegment(enc, path, pcm, info.BitDepth)
		if err != nil {
			return info, err
		}
		info.Frames += frames
		info.Segments++
	}
	if err := enc.Close(); err != nil {
		return info, fmt.Errorf("concat: finalize: %w", err)
	}
	info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)
	return info, nil
}

// ConcatFile concatenates into a temporary file next to dst and renames it
// into place, so dst is either complete or untouched.
func ConcatFile(dst string, paths []string, silence time.Duration) (info Info, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return info, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return info, err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	info, err = Concat(tmp, paths, silence)
	if err != nil {
		return info, err
	}
	if err = tmp.Sync(); err != nil {
		return info, err
	}
	if err = tmp.Close(); err != nil {
		return info, err
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return info, err
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return info, err
	}
	return info, nil
}

func copySegment(enc *wav.Encoder, path string, pcm *audio.Format, bitDepth int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingSegment, path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidSegment, path, err)
	}
	buf := &audio.IntBuffer{Format: pcm, Data: make([]int, chunkFrames*pcm.NumChannels), SourceBitDepth: bitDepth}
	var samples int64
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return 0, fmt.Errorf("concat: read %s: %w", filepath.Base(path), err)
		}
		if n == 0 {
			break
		}
		chunk := &audio.IntBuffer{Format: pcm, Data: buf.Data[:n], SourceBitDepth: bitDepth}
		if err := enc.Write(chunk); err != nil {
			return 0, fmt.Errorf("concat: write %s: %w", filepath.Base(path), err)
		}
		samples += int64(n)
	}
	return samples / int64(pcm.NumChannels), nil
}

func writeSilence(enc *wav.Encoder, pcm *audio.Format, bitDepth int, frames int64) error {
	// 8-bit PCM is unsigned with its midpoint at 128.
	level := 0
	if bitDepth == 8 {
		level = 128
	}
	zeros := make([]int, chunkFrames*pcm.NumChannels)
	if level != 0 {
		for i := range zeros {
			zeros[i] = level
		}
	}
	for frames > 0 {
		n := int64(chunkFrames)
		if frames < n {
			n = frames
		}
		chunk := &audio.IntBuffer{Format: pcm, Data: zeros[:n*int64(pcm.NumChannels)], SourceBitDepth: bitDepth}
		if err := enc.Write(chunk); err != nil {
			return fmt.Errorf("concat: write silence: %w", err)
		}
		frames -= n
	}
	return nil
}
