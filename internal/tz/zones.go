package tz

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	appLog "eventtz/internal/log"
)

// fallbackZones is served when the host has no readable zoneinfo database.
var fallbackZones = []string{
	"UTC",
	"America/Chicago",
	"America/Los_Angeles",
	"America/New_York",
	"America/Sao_Paulo",
	"Asia/Kolkata",
	"Asia/Seoul",
	"Asia/Shanghai",
	"Asia/Tokyo",
	"Australia/Sydney",
	"Europe/Berlin",
	"Europe/London",
	"Europe/Paris",
}

// zoneinfoDirs mirrors the search order of the time package on Unix.
var zoneinfoDirs = []string{
	"/usr/share/zoneinfo/",
	"/usr/share/lib/zoneinfo/",
	"/usr/lib/locale/TZ/",
	"/etc/zoneinfo/",
}

// zoneSources lists where the zone database is looked for, in order. The
// first source that yields any identifier wins.
type zoneSources struct {
	env  string
	dirs []string
	zip  string
}

func hostZoneSources() zoneSources {
	src := zoneSources{env: os.Getenv("ZONEINFO"), dirs: zoneinfoDirs}
	if root := os.Getenv("GOROOT"); root != "" {
		src.zip = filepath.Join(root, "lib", "time", "zoneinfo.zip")
	}
	return src
}

var (
	zonesOnce sync.Once
	zones     []string
)

// ListTimezones returns every IANA identifier the host can resolve, sorted.
// It never fails: without a zoneinfo database a small fixed set is returned.
// "UTC" is always present. The result is computed once; callers must not
// modify it.
func ListTimezones() []string {
	zonesOnce.Do(func() {
		zones = discoverZones(hostZoneSources())
	})
	return zones
}

func discoverZones(src zoneSources) []string {
	var found []string
	if src.env != "" {
		found = zonesFrom(src.env)
	}
	for _, dir := range src.dirs {
		if len(found) > 0 {
			break
		}
		found = zonesFrom(dir)
	}
	if len(found) == 0 && src.zip != "" {
		found = zonesFrom(src.zip)
	}
	if len(found) == 0 {
		appLog.Warn("no zoneinfo database found; using fallback timezone list", "count", len(fallbackZones))
		found = slices.Clone(fallbackZones)
	}
	if !slices.Contains(found, "UTC") {
		found = append(found, "UTC")
	}
	slices.Sort(found)
	found = slices.Compact(found)
	appLog.Debug("timezones discovered", "count", len(found))
	return found
}

// zonesFrom reads identifiers from a zoneinfo directory or zip archive.
func zonesFrom(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return zonesFromDir(path)
	}
	if strings.HasSuffix(path, ".zip") {
		return zonesFromZip(path)
	}
	return nil
}

func zonesFromDir(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			// posix/ and right/ duplicate the whole tree with other leap-second rules.
			if rel == "posix" || rel == "right" {
				return fs.SkipDir
			}
			return nil
		}
		if !plausibleZoneName(rel) || !isTZif(path) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	return out
}

func zonesFromZip(path string) []string {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil
	}
	defer r.Close()

	out := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !plausibleZoneName(f.Name) {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// plausibleZoneName filters out the database's auxiliary files
// (zone.tab, tzdata.zi, leapseconds, posixrules, localtime, ...).
func plausibleZoneName(name string) bool {
	if name == "" || strings.Contains(name, ".") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part[0] < 'A' || part[0] > 'Z' {
			return false
		}
	}
	return true
}

var tzifMagic = []byte("TZif")

func isTZif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(tzifMagic))
	if _, err := f.Read(head); err != nil {
		return false
	}
	return bytes.Equal(head, tzifMagic)
}
