// Package oui resolves MAC addresses to vendor names using the IEEE OUI
// registry (oui.txt). The scanner uses it to label discovered management
// controllers (Supermicro, Dell iDRAC, HPE iLO and so on).
package oui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/oui"
)

// DefaultPaths are searched in order when no database was configured.
var DefaultPaths = []string{
	"/usr/share/ieee-data/oui.txt",
	"/var/lib/ieee-data/oui.txt",
	"/usr/share/misc/oui.txt",
	"/usr/local/share/oui.txt",
}

// ErrNoDatabase is returned when no OUI database file could be found.
var ErrNoDatabase = errors.New("no OUI database found")

var (
	ouiDB     oui.OuiDB
	ouiDBOnce sync.Once
	ouiDBErr  error
	ouiDBMu   sync.RWMutex

	customDBPath string
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from OUI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// VendorInfo contains information about a MAC address vendor.
type VendorInfo struct {
	Manufacturer string
	Country      string
	Prefix       string
}

// SetDatabase sets the path of the oui.txt file to use instead of the
// DefaultPaths search. It must be called before the first lookup, or be
// followed by Reload.
func SetDatabase(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("OUI database file not found: %w", err)
	}

	ouiDBMu.Lock()
	defer ouiDBMu.Unlock()
	customDBPath = path
	ouiDBOnce = sync.Once{}
	ouiDB = nil
	ouiDBErr = nil

	debugLog("Custom OUI database path set: %s", path)
	return nil
}

// DatabasePath returns the configured path, or the first existing default.
func DatabasePath() string {
	ouiDBMu.RLock()
	path := customDBPath
	ouiDBMu.RUnlock()
	if path != "" {
		return path
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func initDB() error {
	ouiDBMu.Lock()
	defer ouiDBMu.Unlock()

	ouiDBOnce.Do(func() {
		path := customDBPath
		if path == "" {
			for _, p := range DefaultPaths {
				if _, err := os.Stat(p); err == nil {
					path = p
					break
				}
			}
		}
		if path == "" {
			ouiDBErr = ErrNoDatabase
			return
		}

		debugLog("Loading OUI database from: %s", path)
		db, err := oui.OpenStaticFile(path)
		if err != nil {
			ouiDBErr = fmt.Errorf("failed to open OUI database: %w", err)
			return
		}
		ouiDB = db
	})
	return ouiDBErr
}

// Lookup returns the vendor of mac. The MAC address can be in various
// formats: "00:11:22:33:44:55", "00-11-22-33-44-55", "001122334455".
// An unknown prefix yields (nil, nil).
func Lookup(mac string) (*VendorInfo, error) {
	normalized := NormalizeMAC(mac)
	if normalized == "" {
		return nil, fmt.Errorf("invalid MAC address format: %q", mac)
	}
	hwAddr, err := net.ParseMAC(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MAC address: %w", err)
	}

	if err := initDB(); err != nil {
		return nil, err
	}

	ouiDBMu.RLock()
	db := ouiDB
	ouiDBMu.RUnlock()

	entry, err := db.Query(hwAddr.String())
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			debugLog("%s: vendor not found in database", normalized)
			return nil, nil
		}
		return nil, fmt.Errorf("OUI lookup failed: %w", err)
	}

	vendor := &VendorInfo{
		Manufacturer: entry.Manufacturer,
		Country:      entry.Country,
		Prefix:       entry.Prefix.String(),
	}
	debugLog("%s -> %s", normalized, vendor.Manufacturer)
	return vendor, nil
}

// LookupName returns just the manufacturer name, or "" if unknown.
func LookupName(mac string) string {
	vendor, err := Lookup(mac)
	if err != nil || vendor == nil {
		return ""
	}
	return vendor.Manufacturer
}

// NormalizeMAC normalizes various MAC address formats to lower-case
// colon-separated form. Returns empty string if invalid.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.NewReplacer("-", "", ":", "", ".", "").Replace(mac)

	if len(mac) != 12 {
		return ""
	}
	for _, c := range mac {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return ""
		}
	}

	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		mac[0:2], mac[2:4], mac[4:6], mac[6:8], mac[8:10], mac[10:12])
}

// Reload forces the database to be opened again on the next lookup.
func Reload() error {
	ouiDBMu.Lock()
	ouiDBOnce = sync.Once{}
	ouiDB = nil
	ouiDBErr = nil
	ouiDBMu.Unlock()

	debugLog("OUI database reload triggered")
	return initDB()
}

// IsLoaded returns true if the OUI database has been loaded.
func IsLoaded() bool {
	ouiDBMu.RLock()
	defer ouiDBMu.RUnlock()
	return ouiDB != nil
}
