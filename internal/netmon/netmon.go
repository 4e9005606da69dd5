// Package netmon answers one question on demand: is the device currently
// reachable over a usable transport (wifi, cellular, or wired)? It is
// stateless and side-effect-free; transient flapping is the caller's
// problem — a pass that starts "reachable" and fails mid-flight is handled
// as an ordinary per-record failure, not here.
package netmon

import (
	"log/slog"
	"net"
	"strings"
)

// Transport classifies a network interface by physical medium.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportWifi
	TransportCellular
	TransportWired
)

// Iface is the slice of interface state the monitor needs. Decoupled from
// net.Interface so tests can fabricate interface lists.
type Iface struct {
	Name     string
	Up       bool
	Loopback bool
	HasAddr  bool
}

// Lister returns the current network interfaces. The default implementation
// queries the OS; tests inject fakes.
type Lister func() ([]Iface, error)

// Monitor reports point-in-time network reachability.
type Monitor struct {
	list   Lister
	logger *slog.Logger
}

// New creates a Monitor backed by the operating system's interface table.
func New(logger *slog.Logger) *Monitor {
	return &Monitor{list: systemInterfaces, logger: logger}
}

// NewWithLister creates a Monitor with an injected interface lister.
func NewWithLister(list Lister, logger *slog.Logger) *Monitor {
	return &Monitor{list: list, logger: logger}
}

// Reachable reports whether any up, addressed, non-loopback interface
// belongs to a usable transport class. Synchronous and uncached.
func (m *Monitor) Reachable() bool {
	ifaces, err := m.list()
	if err != nil {
		m.logger.Warn("listing network interfaces", "error", err)
		return false
	}

	for _, ifc := range ifaces {
		if !ifc.Up || ifc.Loopback || !ifc.HasAddr {
			continue
		}

		if Classify(ifc.Name) != TransportUnknown {
			m.logger.Debug("reachable via interface", "name", ifc.Name)
			return true
		}
	}

	return false
}

// Transport name prefixes by platform convention (Linux predictable names,
// BSD/macOS, legacy kernel names). Longer prefixes are matched first where
// they overlap.
var (
	wifiPrefixes     = []string{"wlan", "wlp", "wlx", "ath", "wifi", "wl"}
	cellularPrefixes = []string{"wwan", "wwp", "rmnet", "ppp"}
	wiredPrefixes    = []string{"eth", "enp", "ens", "eno", "enx", "em", "lan", "en"}
)

// Classify maps an interface name to its transport class.
func Classify(name string) Transport {
	lower := strings.ToLower(name)

	switch {
	case hasAnyPrefix(lower, wifiPrefixes):
		return TransportWifi
	case hasAnyPrefix(lower, cellularPrefixes):
		return TransportCellular
	case hasAnyPrefix(lower, wiredPrefixes):
		return TransportWired
	default:
		return TransportUnknown
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

// systemInterfaces adapts net.Interfaces to the Iface slice.
func systemInterfaces() ([]Iface, error) {
	sys, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	ifaces := make([]Iface, 0, len(sys))

	for _, ifc := range sys {
		addrs, addrErr := ifc.Addrs()

		ifaces = append(ifaces, Iface{
			Name:     ifc.Name,
			Up:       ifc.Flags&net.FlagUp != 0,
			Loopback: ifc.Flags&net.FlagLoopback != 0,
			HasAddr:  addrErr == nil && len(addrs) > 0,
		})
	}

	return ifaces, nil
}
