package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The chains are ordered most specific first; the broad text matches must
// stay at the end so they only fire when the structural selectors drift.
func TestDirectOptionChainOrdering(t *testing.T) {
	selectors := directOptionChain.selectors

	assert.Equal(t, "a[href='#collapseDiretta']", selectors[0])
	assert.Equal(t, "text=Candidatura diretta", selectors[len(selectors)-1])
}

func TestApplyTriggerChainOrdering(t *testing.T) {
	selectors := applyTriggerChain.selectors

	assert.Equal(t, "a.btn-inviacandidatura", selectors[0])
	assert.Contains(t, selectors, `a:has-text("Rispondi all'offerta")`)
}
