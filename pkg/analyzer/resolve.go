package analyzer

import (
	"context"

	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// ResolveKinds assigns kinds to files no filename rule matched by reading
// their headers. Files whose header does not confidently name a kind are
// returned as skipped. Only context cancellation is an error.
func ResolveKinds(ctx context.Context, d *detector.Detector, paths []string) (files []source.File, skipped []string, err error) {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		result, err := d.DetectFromFile(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			skipped = append(skipped, p)
			continue
		}
		if !result.Confident() {
			skipped = append(skipped, p)
			continue
		}
		files = append(files, source.File{Path: p, Kind: result.BestMatch().Kind})
	}
	return files, skipped, nil
}
