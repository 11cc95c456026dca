package woo

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

// Snapshot is the on-disk form of a site's shipping settings. JSON is accepted as a YAML subset.
type Snapshot struct {
	Environment Environment `yaml:"environment"`
	Zones       []Zone      `yaml:"zones"`
}

// SnapshotSource serves zones from a snapshot file
type SnapshotSource struct {
	path     string
	snapshot Snapshot
	wpRoot   string
	themeDir string
}

// OpenSnapshot reads and decodes a snapshot file
func OpenSnapshot(path, wpRoot, themeDir string) (*SnapshotSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wsderrors.NewSourceError("snapshot", "open", wsderrors.NewFileError("open", path, err))
	}
	defer f.Close()

	snap, err := ReadSnapshot(f)
	if err != nil {
		return nil, wsderrors.NewSourceError("snapshot", "decode "+path, err)
	}
	return &SnapshotSource{path: path, snapshot: snap, wpRoot: wpRoot, themeDir: themeDir}, nil
}

// ReadSnapshot decodes a snapshot, ordering zones like the WooCommerce admin
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil && err != io.EOF {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	sort.SliceStable(snap.Zones, func(i, j int) bool {
		a, b := snap.Zones[i], snap.Zones[j]
		// zone 0 always sorts last
		if (a.ID == 0) != (b.ID == 0) {
			return b.ID == 0
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	for i := range snap.Zones {
		z := &snap.Zones[i]
		if z.ID == 0 && z.Name == "" {
			z.Name = RestOfWorldZoneName
		}
		sort.SliceStable(z.Methods, func(a, b int) bool {
			if z.Methods[a].Order != z.Methods[b].Order {
				return z.Methods[a].Order < z.Methods[b].Order
			}
			return z.Methods[a].InstanceID < z.Methods[b].InstanceID
		})
		for j := range z.Methods {
			m := &z.Methods[j]
			if m.MethodTitle == "" {
				m.MethodTitle = defaultMethodTitles[m.ID]
			}
			if m.Title == "" {
				m.Title = m.Settings["title"]
			}
		}
	}
	snap.Zones = withRestOfWorld(snap.Zones)
	return snap, nil
}

// WriteSnapshot encodes zones and environment as YAML
func WriteSnapshot(w io.Writer, env Environment, zones []Zone) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Snapshot{Environment: env, Zones: zones}); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return enc.Close()
}

// Zones returns the snapshot's zones
func (s *SnapshotSource) Zones(ctx context.Context) ([]Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Zone, len(s.snapshot.Zones))
	copy(out, s.snapshot.Zones)
	return out, nil
}

// Environment returns the recorded environment, filling gaps from local files
func (s *SnapshotSource) Environment(ctx context.Context) (Environment, error) {
	env := s.snapshot.Environment
	fillLocalEnvironment(&env, s.wpRoot, s.themeDir)
	return env, ctx.Err()
}

// Close is a no-op
func (s *SnapshotSource) Close() error {
	return nil
}
