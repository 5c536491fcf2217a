package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopMissing(t *testing.T) {
	all := []playerMissing{{"1", 2}, {"2", 5}, {"3", 0}, {"4", 5}}

	top := topMissing(all, 2)
	assert.Equal(t, []playerMissing{{"2", 5}, {"4", 5}}, top)
	assert.Equal(t, "1", all[0].fid)

	assert.Len(t, topMissing(all, 10), 4)
}
