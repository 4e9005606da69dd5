package netmon

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixedLister(ifaces []Iface) Lister {
	return func() ([]Iface, error) { return ifaces, nil }
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want Transport
	}{
		{"wlan0", TransportWifi},
		{"wlp3s0", TransportWifi},
		{"wwan0", TransportCellular},
		{"ppp0", TransportCellular},
		{"eth0", TransportWired},
		{"enp0s31f6", TransportWired},
		{"en0", TransportWired},
		{"lo", TransportUnknown},
		{"docker0", TransportUnknown},
		{"tun0", TransportUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.name))
		})
	}
}

func TestReachable(t *testing.T) {
	t.Parallel()

	t.Run("wifi up with address", func(t *testing.T) {
		m := NewWithLister(fixedLister([]Iface{
			{Name: "lo", Up: true, Loopback: true, HasAddr: true},
			{Name: "wlan0", Up: true, HasAddr: true},
		}), testLogger())

		assert.True(t, m.Reachable())
	})

	t.Run("interface down", func(t *testing.T) {
		m := NewWithLister(fixedLister([]Iface{
			{Name: "eth0", Up: false, HasAddr: true},
		}), testLogger())

		assert.False(t, m.Reachable())
	})

	t.Run("no address assigned", func(t *testing.T) {
		m := NewWithLister(fixedLister([]Iface{
			{Name: "eth0", Up: true, HasAddr: false},
		}), testLogger())

		assert.False(t, m.Reachable())
	})

	t.Run("loopback only", func(t *testing.T) {
		m := NewWithLister(fixedLister([]Iface{
			{Name: "lo", Up: true, Loopback: true, HasAddr: true},
		}), testLogger())

		assert.False(t, m.Reachable())
	})

	t.Run("vpn tunnel does not count as transport", func(t *testing.T) {
		m := NewWithLister(fixedLister([]Iface{
			{Name: "tun0", Up: true, HasAddr: true},
		}), testLogger())

		assert.False(t, m.Reachable())
	})

	t.Run("lister error means unreachable", func(t *testing.T) {
		m := NewWithLister(func() ([]Iface, error) {
			return nil, errors.New("boom")
		}, testLogger())

		assert.False(t, m.Reachable())
	})
}
