package screener

import (
	"bytes"
	"fmt"

	"github.com/glaslos/ssdeep"
	"github.com/root4loot/goutils/log"
)

// IsSimilarToAny checks if the image is a duplicate of any of the images in
// the results slice. Images too small for a fuzzy hash only match when they
// are byte-identical.
func (result Result) IsSimilarToAny(results []Result, similarityThreshold int) (bool, error) {
	if similarityThreshold < 1 || similarityThreshold > 100 {
		return false, fmt.Errorf("invalid similarity threshold %d: must be between 1 and 100", similarityThreshold)
	}

	hash1, hashErr := ssdeep.FuzzyBytes(result.Image)

	for _, r := range results {
		if bytes.Equal(result.Image, r.Image) {
			log.Debugf("%s is identical to %s. Skipping..", result.TargetURL, r.TargetURL)
			return true, nil
		}

		if hashErr != nil {
			continue
		}

		hash2, err := ssdeep.FuzzyBytes(r.Image)
		if err != nil {
			continue
		}

		score, err := ssdeep.Distance(hash1, hash2)
		if err != nil {
			continue
		}

		if score >= similarityThreshold {
			log.Debugf("%s is similar to %s with a score of %d. Skipping..", result.TargetURL, r.TargetURL, score)
			return true, nil
		}
	}
	return false, nil
}
