package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// RetentionPolicy bounds how many recordings stay on disk and for how long.
// Zero values disable the matching limit.
type RetentionPolicy struct {
	MaxBundles int
	MaxAge     time.Duration
}

type bundleInfo struct {
	path    string
	created time.Time
}

// Prune removes bundles under root that break the policy, newest kept first.
// Directories without a readable manifest are left alone. It returns the removed paths.
func Prune(root string, policy RetentionPolicy, now time.Time, logger *logging.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.L()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan replay root: %w", err)
	}

	var bundles []bundleInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		data, err := os.ReadFile(filepath.Join(path, manifestFile))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			logger.Warn("replay manifest unreadable", logging.String("path", path), logging.Error(err))
			continue
		}
		created, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
		if err != nil {
			continue
		}
		bundles = append(bundles, bundleInfo{path: path, created: created})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].created.After(bundles[j].created) })

	var removed []string
	var errs error
	kept := 0
	for _, b := range bundles {
		expired := policy.MaxAge > 0 && now.Sub(b.created) > policy.MaxAge
		surplus := policy.MaxBundles > 0 && kept >= policy.MaxBundles
		if !expired && !surplus {
			kept++
			continue
		}
		if err := os.RemoveAll(b.path); err != nil {
			errs = errors.Join(errs, err)
			kept++
			continue
		}
		logger.Info("replay bundle pruned",
			logging.String("path", b.path),
			logging.Bool("expired", expired),
			logging.Bool("surplus", surplus))
		removed = append(removed, b.path)
	}
	return removed, errs
}
