package session

import (
	"bufio"
	"debug/elf"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"disview/internal/disview"
	"disview/internal/elfx"
)

// mapping is one executable, file-backed region of a process address space.
type mapping struct {
	start, end uint64
	path       string
}

// ProcSession enumerates the loaded images of a live process from
// /proc/<pid>/maps. The map set is read once at attach time; the debugged
// process is assumed stopped while being inspected. Debug images are opened
// lazily, the first time an address inside them is resolved.
type ProcSession struct {
	Pid int

	mappings []mapping
	bases    map[string]uint64 // image path -> lowest mapped address

	mu     sync.Mutex
	images map[string]*disview.Library
}

// Attach reads the process's current memory map.
func Attach(pid int) (*ProcSession, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("read maps for pid %d: %w", pid, err)
	}
	defer f.Close()

	s := &ProcSession{Pid: pid, images: make(map[string]*disview.Library)}
	s.mappings, s.bases, err = parseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("parse maps for pid %d: %w", pid, err)
	}
	return s, nil
}

// parseMaps extracts executable, file-backed mappings from /proc/<pid>/maps
// content and the per-image load base (lowest mapped address of the file,
// whatever the permissions of that segment).
func parseMaps(r io.Reader) ([]mapping, map[string]uint64, error) {
	var maps []mapping
	bases := make(map[string]uint64)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// start-end perms offset dev inode path
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		path := fields[5]
		if !strings.HasPrefix(path, "/") {
			continue // anonymous, [vdso], [stack], ...
		}

		addrs := strings.SplitN(fields[0], "-", 2)
		if len(addrs) != 2 {
			continue
		}
		start, err := strconv.ParseUint(addrs[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(addrs[1], 16, 64)
		if err != nil {
			continue
		}

		if base, ok := bases[path]; !ok || start < base {
			bases[path] = start
		}
		if strings.Contains(fields[1], "x") {
			maps = append(maps, mapping{start: start, end: end, path: path})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return maps, bases, nil
}

// LibraryOwning returns the loaded image whose executable mapping contains
// addr.
func (s *ProcSession) LibraryOwning(addr uint64) (*disview.Library, bool) {
	for _, m := range s.mappings {
		if addr >= m.start && addr < m.end {
			return s.library(m.path)
		}
	}
	return nil, false
}

func (s *ProcSession) library(path string) (*disview.Library, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lib, ok := s.images[path]; ok {
		return lib, lib != nil
	}

	img, err := elfx.Open(path)
	if err != nil {
		slog.Debug("Failed to open debug image", "path", path, "error", err)
		s.images[path] = nil // remember the failure
		return nil, false
	}
	// Fixed-address executables already run at their link-time addresses.
	base := s.bases[path]
	if img.File != nil && img.File.Type == elf.ET_EXEC {
		base = 0
	}
	lib := &disview.Library{Name: path, Base: base, Info: debugInfo{img}}
	s.images[path] = lib
	return lib, true
}

// Close releases every lazily opened image.
func (s *ProcSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for path, lib := range s.images {
		if lib == nil {
			continue
		}
		if info, ok := lib.Info.(debugInfo); ok {
			if err := info.img.Close(); err != nil && first == nil {
				first = err
			}
		}
		delete(s.images, path)
	}
	return first
}
