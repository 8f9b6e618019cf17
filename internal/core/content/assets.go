package content

import (
	"fmt"
	"strings"

	"github.com/example/contentgate/internal/core/gate"
)

// AssetRequirements bounds the asset manifest of an item.
type AssetRequirements struct {
	MinCount  int
	MinWidth  int
	MinHeight int
}

// CheckAssets validates an asset manifest: enough assets, a cover, every
// asset at least the minimum resolution, and every asset with a path and a
// non-zero size. All problems are reported.
func CheckAssets(assets []Asset, req AssetRequirements) []gate.Result {
	results := []gate.Result{}

	if len(assets) < req.MinCount {
		results = append(results, gate.Fail("assets:count", gate.CodeAssetCount,
			fmt.Sprintf("%d asset(s) in manifest, at least %d required", len(assets), req.MinCount),
			"render the missing cover or body images"))
	} else {
		results = append(results, gate.Pass("assets:count"))
	}

	hasCover := false
	for _, a := range assets {
		if a.Kind == AssetCover {
			hasCover = true
			break
		}
	}
	if hasCover {
		results = append(results, gate.Pass("assets:cover"))
	} else {
		results = append(results, gate.Fail("assets:cover", gate.CodeAssetCoverMissing,
			"manifest has no COVER asset",
			"render the cover image"))
	}

	var small, incomplete []string
	for i, a := range assets {
		label := a.Path
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if strings.TrimSpace(a.Path) == "" || a.Bytes <= 0 {
			incomplete = append(incomplete, label)
		}
		if a.Width < req.MinWidth || a.Height < req.MinHeight {
			small = append(small, fmt.Sprintf("%s (%dx%d)", label, a.Width, a.Height))
		}
	}

	if len(small) > 0 {
		results = append(results, gate.Fail("assets:resolution", gate.CodeAssetResolution,
			fmt.Sprintf("below %dx%d: %s", req.MinWidth, req.MinHeight, strings.Join(small, ", ")),
			"re-render at the minimum resolution or higher"))
	} else {
		results = append(results, gate.Pass("assets:resolution"))
	}

	if len(incomplete) > 0 {
		results = append(results, gate.Fail("assets:files", gate.CodeAssetIncomplete,
			fmt.Sprintf("missing path or empty file: %s", strings.Join(incomplete, ", ")),
			"re-export the listed assets"))
	} else {
		results = append(results, gate.Pass("assets:files"))
	}

	return results
}
