// Package indextts drives IndexTTS2 batch inference. A generated Python
// driver and a JSON task file are placed in the IndexTTS checkout and run
// with `uv run`, producing one WAV file per requested line.
package indextts
