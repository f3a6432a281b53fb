package llm

import (
	"slices"

	"github.com/joseph-ayodele/studysift/internal/common"
)

// ModelAllowList restricts which local models may be requested.
type ModelAllowList []string

// Check returns InvalidModelSelection when model is not in the list.
func (l ModelAllowList) Check(model string) error {
	if slices.Contains(l, model) {
		return nil
	}
	return common.InvalidModelSelection(model, l)
}
