package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheIndexTimeout = 300 * time.Millisecond

// VoiceSettings is the canonical serialization input for cache keys. Any
// change to any field must change the digest.
type VoiceSettings struct {
	Gender         Gender
	AgeTone        AgeTone
	PitchSemitones int
	RatePercent    int
	Engine         string
	Voice          string
}

func (s VoiceSettings) canonical() string {
	return fmt.Sprintf("gender=%s;age=%s;pitch=%d;rate=%d;engine=%s;voice=%s",
		s.Gender, s.AgeTone, s.PitchSemitones, s.RatePercent, s.Engine, s.Voice)
}

// AudioStore is the content-addressed output cache. Artifacts live in one
// flat directory under deterministic names carrying the language slug and an
// 8-hex digest; the store keeps an explicit digest -> filename index instead
// of scanning filenames per lookup, and optionally mirrors that index to
// Redis so replicas share it. Entries are append-only and never evicted.
type AudioStore struct {
	dir   string
	redis *redis.Client

	mu    sync.RWMutex
	index map[string]string
}

// NewAudioStore opens (and creates if needed) the output directory and
// rebuilds the index from the filenames already present. redisClient may be
// nil.
func NewAudioStore(dir string, redisClient *redis.Client) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("speech: create output directory %s: %w", dir, err)
	}

	store := &AudioStore{
		dir:   dir,
		redis: redisClient,
		index: make(map[string]string),
	}
	store.rebuildIndex()
	return store, nil
}

// Dir returns the output directory path.
func (s *AudioStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Key derives the 8-hex content digest for a request. Identical inputs
// always produce the identical key.
func (s *AudioStore) Key(text, language string, settings VoiceSettings) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text) + "\n" + strings.ToLower(strings.TrimSpace(language)) + "\n" + settings.canonical()))
	return hex.EncodeToString(sum[:])[:8]
}

// Lookup returns the cached artifact for a digest, consulting the local
// index first and the shared Redis mirror second. A stale index entry whose
// file has disappeared is dropped.
func (s *AudioStore) Lookup(ctx context.Context, key string) (string, []byte, bool) {
	if s == nil || key == "" {
		return "", nil, false
	}

	s.mu.RLock()
	filename := s.index[key]
	s.mu.RUnlock()

	if filename == "" && s.redis != nil {
		redisCtx, cancel := context.WithTimeout(ctx, cacheIndexTimeout)
		remote, err := s.redis.Get(redisCtx, s.redisKey(key)).Result()
		cancel()
		if err == nil && remote != "" {
			filename = remote
		}
	}

	if filename == "" {
		return "", nil, false
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		s.mu.Lock()
		delete(s.index, key)
		s.mu.Unlock()
		return "", nil, false
	}

	return filename, data, true
}

// Store persists audio bytes under the content-addressed filename for the
// digest and records it in the index. Two concurrent writers of the same key
// produce the same name; last writer wins, which is accepted because content
// is deterministic per key.
func (s *AudioStore) Store(ctx context.Context, key, language, format string, data []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("speech: audio store is not initialized")
	}

	ext := strings.TrimPrefix(strings.TrimSpace(format), ".")
	if ext == "" {
		ext = "mp3"
	}
	filename := fmt.Sprintf("speech_%s_%s.%s", languageSlug(language), key, ext)

	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("speech: write audio artifact %s: %w", filename, err)
	}

	s.mu.Lock()
	s.index[key] = filename
	s.mu.Unlock()

	if s.redis != nil {
		redisCtx, cancel := context.WithTimeout(ctx, cacheIndexTimeout)
		if err := s.redis.Set(redisCtx, s.redisKey(key), filename, 0).Err(); err != nil {
			log.Printf("speech: mirror cache index entry %s failed: %v", key, err)
		}
		cancel()
	}

	return filename, nil
}

// Path resolves a stored filename to its absolute location after rejecting
// traversal attempts. The second return is false for unsafe names.
func (s *AudioStore) Path(filename string) (string, bool) {
	if s == nil {
		return "", false
	}
	cleaned := filepath.Base(strings.TrimSpace(filename))
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned != filename {
		return "", false
	}
	return filepath.Join(s.dir, cleaned), true
}

func (s *AudioStore) redisKey(key string) string {
	return "speech:cache:" + key
}

var artifactNamePattern = regexp.MustCompile(`^speech_[a-z0-9-]+_([0-9a-f]{8})\.[a-z0-9]+$`)

// rebuildIndex scans the output directory once at startup and re-keys every
// artifact by the digest embedded in its filename. Pitch derivatives carry a
// _pitch_ suffix and deliberately do not match.
func (s *AudioStore) rebuildIndex() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("speech: scan output directory %s failed: %v", s.dir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := artifactNamePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		s.index[matches[1]] = entry.Name()
	}

	if len(s.index) > 0 {
		log.Printf("speech: recovered %d cached artifacts from %s", len(s.index), s.dir)
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func languageSlug(language string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(language)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "und"
	}
	return slug
}
