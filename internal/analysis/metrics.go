package analysis

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// Tunable clarity heuristics. The thresholds and multipliers are
// empirical; keep them in sync with the scoring tests when changing.
const (
	silenceThreshold = 0.01 // absolute amplitude below which a sample counts as silence
	quietFraction    = 0.9  // silence fraction above which the quiet penalty applies
	quietPenalty     = 0.5
	noSilenceFraction = 0.05 // silence fraction below which the constant-noise penalty applies
	noSilencePenalty  = 0.8

	decimationStep = 100 // every Nth sample feeds the order statistics

	pitchWindowSize = 2048
	pitchMinLag     = 20
	pitchMaxLag     = 1000 // exclusive
	pitchRMSGate    = 0.01

	floorDB = -100
)

// Analyzer produces acoustic quality metrics from recorded audio blobs.
// WAV blobs are decoded in-process; other formats go through ffmpeg
// first, using tempDir for the intermediate files.
type Analyzer struct {
	tempDir string
}

// New creates an Analyzer that stages non-WAV decodes under tempDir.
func New(tempDir string) *Analyzer {
	return &Analyzer{tempDir: tempDir}
}

// Analyze decodes blob and computes the quality report. Decode failures
// come back as *types.DecodeError; callers should log and continue
// without metrics.
func (a *Analyzer) Analyze(blob types.AudioBlob) (*types.AudioMetrics, error) {
	samples, sampleRate, channels, err := a.decode(blob)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, &types.DecodeError{Format: blob.MIME, Err: fmt.Errorf("empty audio")}
	}

	m := computeMetrics(samples, sampleRate)
	m.Channels = channels
	return &m, nil
}

// decode turns the blob into first-channel samples at native rate.
func (a *Analyzer) decode(blob types.AudioBlob) ([]float64, int, int, error) {
	if len(blob.Data) == 0 {
		return nil, 0, 0, &types.DecodeError{Format: blob.MIME, Err: fmt.Errorf("empty blob")}
	}
	if isWAV(blob) {
		return decodeWAV(blob.Data, blob.MIME)
	}
	return a.decodeViaFFmpeg(blob)
}

func isWAV(blob types.AudioBlob) bool {
	if strings.Contains(blob.MIME, "wav") {
		return true
	}
	return len(blob.Data) >= 12 &&
		bytes.Equal(blob.Data[0:4], []byte("RIFF")) &&
		bytes.Equal(blob.Data[8:12], []byte("WAVE"))
}

// decodeWAV reads a RIFF/WAVE payload keeping only the first channel.
func decodeWAV(data []byte, mime string) ([]float64, int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, 0, &types.DecodeError{Format: mime, Err: fmt.Errorf("invalid WAV container")}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, &types.DecodeError{Format: mime, Err: err}
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := 32768.0
	if dec.BitDepth > 0 {
		scale = float64(int64(1) << (dec.BitDepth - 1))
	}

	samples := make([]float64, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, float64(buf.Data[i])/scale)
	}

	return samples, buf.Format.SampleRate, channels, nil
}

// decodeViaFFmpeg converts any other container to mono WAV at native
// rate and decodes that. Both temp files are removed on every exit path.
func (a *Analyzer) decodeViaFFmpeg(blob types.AudioBlob) ([]float64, int, int, error) {
	id := uuid.New().String()
	inPath := filepath.Join(a.tempDir, fmt.Sprintf("decode_%s%s", id, extensionFor(blob.MIME)))
	outPath := filepath.Join(a.tempDir, fmt.Sprintf("decode_%s.wav", id))

	if err := os.WriteFile(inPath, blob.Data, 0644); err != nil {
		return nil, 0, 0, &types.DecodeError{Format: blob.MIME, Err: err}
	}
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	cmd := exec.Command("ffmpeg",
		"-i", inPath,
		"-ac", "1", // first/downmixed channel only
		"-c:a", "pcm_s16le",
		"-y",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, 0, 0, &types.DecodeError{
			Format: blob.MIME,
			Err:    fmt.Errorf("ffmpeg: %v: %s", err, firstLine(out)),
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, 0, 0, &types.DecodeError{Format: blob.MIME, Err: err}
	}

	return decodeWAV(data, blob.MIME)
}

func extensionFor(mime string) string {
	switch {
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return ".mp3"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return ".m4a"
	case strings.Contains(mime, "flac"):
		return ".flac"
	default:
		return ".bin"
	}
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// computeMetrics runs the full DSP pass over first-channel samples.
func computeMetrics(samples []float64, sampleRate int) types.AudioMetrics {
	n := len(samples)

	var (
		sumSquares   float64
		peak         float64
		silenceCount int
		crossings    int
	)
	for i, s := range samples {
		sumSquares += s * s
		abs := math.Abs(s)
		if abs > peak {
			peak = abs
		}
		if abs < silenceThreshold {
			silenceCount++
		}
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}

	rms := math.Sqrt(sumSquares / float64(n))
	silenceFrac := float64(silenceCount) / float64(n)

	return types.AudioMetrics{
		Duration:         float64(n) / float64(sampleRate),
		SampleRate:       sampleRate,
		RMSDB:            clampDB(20 * math.Log10(rms)),
		PeakDB:           clampDB(20 * math.Log10(peak)),
		SilenceRatio:     silenceFrac * 100,
		ZeroCrossingRate: float64(crossings) / float64(n),
		AvgPitchHz:       detectPitch(samples, sampleRate),
		ClarityScore:     clarityScore(samples, silenceFrac),
	}
}

// clarityScore estimates SNR from decimated order statistics: the noise
// floor is the mean of the quietest 10%, the signal level the mean of
// the loudest 5%.
func clarityScore(samples []float64, silenceFrac float64) float64 {
	working := make([]float64, 0, len(samples)/decimationStep+1)
	for i := 0; i < len(samples); i += decimationStep {
		working = append(working, math.Abs(samples[i]))
	}
	sort.Float64s(working)

	noiseFloor := sliceMean(working[:len(working)/10])
	signalLevel := sliceMean(working[len(working)-len(working)/20:])

	ratio := signalLevel / (noiseFloor + 1e-6)
	score := math.Log10(ratio) * 40
	if math.IsNaN(score) {
		score = 0
	}
	score = clamp(score, 0, 100)

	if silenceFrac > quietFraction {
		score *= quietPenalty
	}
	if silenceFrac < noSilenceFraction {
		score *= noSilencePenalty
	}
	return score
}

func sliceMean(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v
	}
	div := float64(len(s))
	if div == 0 {
		div = 1
	}
	return sum / div
}

// detectPitch runs an integer-lag autocorrelation over a window centred
// at the buffer midpoint. The window must fit entirely inside the
// buffer and carry enough energy, otherwise pitch is reported as 0.
func detectPitch(samples []float64, sampleRate int) float64 {
	offset := len(samples)/2 - pitchWindowSize/2
	if offset < 0 || offset+pitchWindowSize > len(samples) {
		return 0
	}
	window := samples[offset : offset+pitchWindowSize]

	var sumSquares float64
	for _, s := range window {
		sumSquares += s * s
	}
	if math.Sqrt(sumSquares/float64(len(window))) <= pitchRMSGate {
		return 0
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := pitchMinLag; lag < pitchMaxLag; lag++ {
		overlap := pitchWindowSize - lag
		var sum float64
		for i := 0; i < overlap; i++ {
			sum += window[i] * window[i+lag]
		}
		corr := sum / float64(overlap)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return float64(sampleRate) / float64(bestLag)
}

func clampDB(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < floorDB {
		return floorDB
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
