package build

import (
	"context"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ritzau/incbuild/pkg/classfile"
	"github.com/ritzau/incbuild/pkg/deps"
	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/state"
)

// changedOutputs returns the outputs that appeared or changed timestamp
// between two snapshots of the output directory
func changedOutputs(before, after map[string]time.Time) map[string]time.Time {
	changed := make(map[string]time.Time)
	for p, t := range after {
		if old, ok := before[p]; !ok || !old.Equal(t) {
			changed[p] = t
		}
	}
	return changed
}

// ownsOutput reports whether output file o was produced for a source file of
// the given type name: "Main.class" and "Main$Inner.class" belong to Main.
func ownsOutput(typeName, o string) bool {
	base := path.Base(o)
	if strings.HasPrefix(base, typeName+"$") {
		return true
	}
	return deps.TypeName(base) == typeName
}

// attributeOutputs records each changed output on the compiled record that
// produced it, in three passes:
//
//  1. class files naming their source (the SourceFile attribute) go to the
//     compiled record with that file name, preferring the output's folder;
//  2. remaining outputs are matched by type name ("Main.class",
//     "Main$Inner.class"), first in the source's own folder, then anywhere
//     for type names unique in the compile set;
//  3. what is left in a folder goes to the only compiled source there.
//
// Outputs matching nothing stay unrecorded and are logged.
func attributeOutputs(ctx context.Context, outDir string, compiled map[string]*state.SourceFileRecord, changed map[string]time.Time) {
	paths := slices.Sorted(maps.Keys(compiled))
	outputs := slices.Sorted(maps.Keys(changed))
	claimed := make(map[string]bool)

	claim := func(p, o string) {
		compiled[p].OutputFiles[o] = changed[o]
		claimed[o] = true
	}

	byFileName := make(map[string][]string)
	byDir := make(map[string][]string)
	names := make(map[string]int)
	for _, p := range paths {
		byFileName[path.Base(p)] = append(byFileName[path.Base(p)], p)
		byDir[path.Dir(p)] = append(byDir[path.Dir(p)], p)
		names[deps.TypeName(p)]++
	}

	for _, o := range outputs {
		if path.Ext(o) != ".class" {
			continue
		}
		sf, err := classfile.ReadSourceFile(filepath.Join(outDir, filepath.FromSlash(o)))
		if err != nil {
			logging.TraceContext(ctx, "no source file attribute", "output", o, "error", err)
			continue
		}
		candidates := byFileName[sf]
		if i := slices.IndexFunc(candidates, func(p string) bool { return path.Dir(p) == path.Dir(o) }); i >= 0 {
			claim(candidates[i], o)
		} else if len(candidates) == 1 {
			claim(candidates[0], o)
		}
	}

	for _, p := range paths {
		tn := deps.TypeName(p)
		for _, o := range outputs {
			if !claimed[o] && path.Dir(o) == path.Dir(p) && ownsOutput(tn, o) {
				claim(p, o)
			}
		}
	}
	for _, p := range paths {
		tn := deps.TypeName(p)
		if len(compiled[p].OutputFiles) > 0 || names[tn] != 1 {
			continue
		}
		for _, o := range outputs {
			if !claimed[o] && ownsOutput(tn, o) {
				claim(p, o)
			}
		}
	}

	for _, o := range outputs {
		if claimed[o] {
			continue
		}
		if owners := byDir[path.Dir(o)]; len(owners) == 1 {
			claim(owners[0], o)
			continue
		}
		logging.DebugContext(ctx, "output not attributed to any source", "output", o)
	}
}
