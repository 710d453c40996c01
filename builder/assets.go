package builder

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"norsetinge-images/common"
)

// AssetBuilder converts every source image below a set of directories
type AssetBuilder struct {
	opts common.Options
}

// Report summarizes one build run
type Report struct {
	Converted []string // artifact paths
	Skipped   int      // mode none, missing or undecodable sources
	Failed    int      // artifacts that could not be written
}

// NewAssetBuilder creates a new asset builder
func NewAssetBuilder(opts common.Options) *AssetBuilder {
	return &AssetBuilder{opts: opts}
}

// Build walks each root and converts every source image it finds.
// A failing asset is logged and never stops the walk.
func (b *AssetBuilder) Build(roots ...string) (*Report, error) {
	report := &Report{}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("⚠️  Cannot read %s: %v", path, err)
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !common.IsSourceImage(d.Name()) {
				return nil
			}

			b.convert(filepath.Dir(path), d.Name(), report)
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	log.Printf("📦 Build finished: %d converted, %d skipped, %d failed",
		len(report.Converted), report.Skipped, report.Failed)
	return report, nil
}

func (b *AssetBuilder) convert(dir, name string, report *Report) {
	artifact, ok, err := common.ConvertImage(dir, name, b.opts)
	switch {
	case err != nil:
		report.Failed++
		log.Printf("❌ %v", err)
	case !ok:
		report.Skipped++
	default:
		report.Converted = append(report.Converted, filepath.Join(dir, artifact))
	}
}
