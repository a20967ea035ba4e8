// Package recorder implements the rolling WAV writer used by Record nodes:
// it rotates to a new timestamped file once the current one crosses a size
// threshold, and reclaims space by deleting the oldest files sharing a
// basename once their combined size exceeds a quota. Each file is written
// under a temporary name and renamed into place once finalized; eviction
// sorts files oldest first and deletes them until the total fits.
package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/logging"
)

const (
	bitDepth    = 16
	audioFormat = 1 // PCM
)

// Config controls rotation and retention for a Recorder.
type Config struct {
	Directory        string
	BaseName         string // files are named <BaseName>_<UTC timestamp>.wav, plus _<n> if that name exists
	SampleRate       int
	NumChannels      int // 1 or 2
	MaxFileSizeBytes int64
	MaxTotalBytes    int64 // 0 disables quota eviction
	AutoDelete       bool  // delete the just-rotated file immediately instead of keeping it for quota eviction
}

// Stats reports the recorder's current operating state.
type Stats struct {
	FramesWritten   uint64
	BytesWritten    int64
	FilesRotated    uint64
	FilesEvicted    uint64
	WritesDisabled  bool
	LastError       string
	CurrentFilePath string
}

// Recorder writes incoming frames to a rotating sequence of WAV files.
// Every method takes an internal lock, so Statistics and the limit setters
// may be called while the processing graph's loop is writing frames.
type Recorder struct {
	mu     sync.Mutex
	cfg    Config
	stats  Stats
	enc    *wav.Encoder
	file   *os.File
	curSz  int64

	pendingRename pendingRename
}

// New validates the config and constructs a Recorder. It does not open a
// file until the first frame is written.
func New(cfg Config) (*Recorder, error) {
	if cfg.Directory == "" {
		return nil, errors.Newf("recorder directory must not be empty").
			Component("recorder").Category(errors.CategoryValidation).Build()
	}
	if cfg.BaseName == "" {
		return nil, errors.Newf("recorder base name must not be empty").
			Component("recorder").Category(errors.CategoryValidation).Build()
	}
	if cfg.SampleRate <= 0 {
		return nil, errors.Newf("recorder sample rate must be positive").
			Component("recorder").Category(errors.CategoryValidation).Build()
	}
	if cfg.NumChannels != 1 && cfg.NumChannels != 2 {
		return nil, errors.Newf("recorder supports 1 or 2 channels, got %d", cfg.NumChannels).
			Component("recorder").Category(errors.CategoryValidation).Build()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		return nil, errors.Newf("recorder max file size must be positive").
			Component("recorder").Category(errors.CategoryValidation).Build()
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
			Context("operation", "mkdir").Context("path", cfg.Directory).Build()
	}
	return &Recorder{cfg: cfg}, nil
}

// WriteFrame appends a frame to the current file, rotating first if the
// frame would push the file past MaxFileSizeBytes. A write failure disables
// further writes (recorded in Stats) but never returns an error to the
// caller: the processing graph must keep flowing even if storage is gone.
func (r *Recorder) WriteFrame(f frame.AudioFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stats.WritesDisabled {
		return
	}

	samples := interleaved(f, r.cfg.NumChannels)
	if samples == nil {
		r.disable(fmt.Errorf("frame channel count does not match recorder configuration"))
		return
	}

	frameBytes := int64(len(samples) * 2) // 16-bit samples
	if r.enc == nil || r.curSz+frameBytes > r.cfg.MaxFileSizeBytes {
		if err := r.rotate(); err != nil {
			r.disable(err)
			return
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: r.cfg.NumChannels, SampleRate: r.cfg.SampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := r.enc.Write(buf); err != nil {
		r.disable(err)
		return
	}

	r.curSz += frameBytes
	r.stats.BytesWritten += frameBytes
	r.stats.FramesWritten++
}

func interleaved(f frame.AudioFrame, numChannels int) []int {
	switch f.Channels {
	case frame.ChannelsSingle:
		if numChannels != 1 || f.Single == nil {
			return nil
		}
		out := make([]int, len(f.Single.Samples))
		for i, s := range f.Single.Samples {
			out[i] = clampInt16(s)
		}
		return out
	case frame.ChannelsDual:
		if numChannels != 2 || f.Dual == nil {
			return nil
		}
		out := make([]int, len(f.Dual.ChannelA)*2)
		for i := range f.Dual.ChannelA {
			out[2*i] = clampInt16(f.Dual.ChannelA[i])
			out[2*i+1] = clampInt16(f.Dual.ChannelB[i])
		}
		return out
	default:
		return nil
	}
}

func clampInt16(s float32) int {
	v := int(s * 32767)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

// rotate closes the current file (if any), evicts old files if the quota
// is exceeded, and opens a new timestamped file.
func (r *Recorder) rotate() error {
	finished := r.stats.CurrentFilePath
	if err := r.closeCurrent(); err != nil {
		return err
	}

	if r.cfg.AutoDelete && finished != "" {
		if err := os.Remove(finished); err != nil && !os.IsNotExist(err) {
			logging.ForComponent("recorder").Warn("auto_delete of rotated file failed", "path", finished, "error", err)
		}
	}

	if r.cfg.MaxTotalBytes > 0 {
		if err := r.evictOldest(); err != nil {
			logging.ForComponent("recorder").Warn("eviction failed", "error", err)
		}
	}

	ts := time.Now().UTC().Format("20060102_150405")
	path := filepath.Join(r.cfg.Directory, fmt.Sprintf("%s_%s.wav", r.cfg.BaseName, ts))
	// Two rotations within the same second would otherwise share a name and
	// the later rename would overwrite the earlier file.
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(r.cfg.Directory, fmt.Sprintf("%s_%s_%d.wav", r.cfg.BaseName, ts, n))
	}
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
			Context("operation", "create").Context("path", tmp).Build()
	}
	enc := wav.NewEncoder(f, r.cfg.SampleRate, bitDepth, r.cfg.NumChannels, audioFormat)

	r.file = f
	r.enc = enc
	r.curSz = 0
	r.stats.CurrentFilePath = path
	r.stats.FilesRotated++

	// The temp file is renamed into place once the encoder's header has
	// been finalized, i.e. on the next rotate/Close call.
	r.pendingRename = pendingRename{tmp: tmp, final: path}
	return nil
}

type pendingRename struct {
	tmp   string
	final string
}

func (r *Recorder) closeCurrent() error {
	if r.enc == nil {
		return nil
	}
	if err := r.enc.Close(); err != nil {
		_ = r.file.Close()
		return errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
			Context("operation", "finalize_wav_header").Build()
	}
	if err := r.file.Close(); err != nil {
		return errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
			Context("operation", "close_file").Build()
	}
	if r.pendingRename.tmp != "" {
		if err := os.Rename(r.pendingRename.tmp, r.pendingRename.final); err != nil {
			return errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
				Context("operation", "rename").Context("from", r.pendingRename.tmp).
				Context("to", r.pendingRename.final).Build()
		}
	}
	r.enc = nil
	r.file = nil
	r.pendingRename = pendingRename{}
	return nil
}

// Close finalizes any in-progress file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCurrent()
}

func (r *Recorder) disable(cause error) {
	r.stats.WritesDisabled = true
	r.stats.LastError = cause.Error()
	logging.ForComponent("recorder").Error("recording disabled", "error", cause)
}

// evictOldest deletes the oldest files sharing this recorder's basename
// until their combined size is under the configured quota.
func (r *Recorder) evictOldest() error {
	entries, err := os.ReadDir(r.cfg.Directory)
	if err != nil {
		return errors.New(err).Component("recorder").Category(errors.CategoryFileIO).
			Context("operation", "readdir").Build()
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64
	prefix := r.cfg.BaseName + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p := filepath.Join(r.cfg.Directory, e.Name())
		files = append(files, fileInfo{path: p, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if total <= r.cfg.MaxTotalBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for _, fi := range files {
		if total <= r.cfg.MaxTotalBytes {
			break
		}
		if err := os.Remove(fi.path); err != nil {
			continue
		}
		total -= fi.size
		r.stats.FilesEvicted++
	}
	return nil
}

// Statistics returns a snapshot of the recorder's current state.
func (r *Recorder) Statistics() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// UpdateLimits applies new rotation/quota thresholds. It takes effect from
// the next rotation decision onward; it never touches the currently open
// file.
func (r *Recorder) UpdateLimits(maxFileSizeBytes, maxTotalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.MaxFileSizeBytes = maxFileSizeBytes
	r.cfg.MaxTotalBytes = maxTotalBytes
}

// SetAutoDelete toggles whether a just-rotated file is deleted immediately
// rather than kept around for quota eviction.
func (r *Recorder) SetAutoDelete(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.AutoDelete = enabled
}
