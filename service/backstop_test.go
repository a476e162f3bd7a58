package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFault(t *testing.T) {
	assert.Equal(t, FaultSession, ClassifyFault(errors.New("Proposal expired")))
	assert.Equal(t, FaultSession, ClassifyFault(errors.New("walletconnect: relay closed")))
	assert.Equal(t, FaultSession, ClassifyFault(errors.New("no matching session key")))
	assert.Equal(t, FaultOther, ClassifyFault(errors.New("connection reset by peer")))
	assert.Equal(t, FaultOther, ClassifyFault(nil))
}

func TestGuardRecovers(t *testing.T) {
	ran := false
	assert.NotPanics(t, func() {
		Guard("test", func() {
			ran = true
			panic("proposal expired")
		})
	})
	assert.True(t, ran)
}
