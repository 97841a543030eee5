package thermalcapture

import (
	"errors"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassIgnorable},
		{"nuc_in_progress", NewDeviceError(CondNUCInProgress, ""), ClassTransient},
		{"try_again", NewDeviceError(CondTryAgain, "resource busy"), ClassTransient},
		{"already_scanning", NewDeviceError(CondAlreadyScanning, ""), ClassIgnorable},
		{"connection_timeout", NewDeviceError(CondConnectionTimeout, ""), ClassFatal},
		{"invalid_login", NewDeviceError(CondInvalidLogin, ""), ClassFatal},
		{"corrupt_frame", NewDeviceError(CondCorruptFrame, ""), ClassFatal},
		{"unknown_condition", NewDeviceError(Condition(997), ""), ClassFatal},
		{"plain_error", errors.New("boom"), ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("stream: receive frame: %w", NewDeviceError(CondNUCInProgress, ""))
	assert.Equal(t, ClassTransient, Classify(err))

	err = fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", NewDeviceError(CondTryAgain, "")))
	assert.Equal(t, ClassTransient, Classify(err))
}

func TestClassifyIsTotal(t *testing.T) {
	// Any condition code, known or not, must land in exactly one class.
	f := func(code int) bool {
		c := Classify(NewDeviceError(Condition(code), ""))
		return c == ClassFatal || c == ClassTransient || c == ClassIgnorable
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	f := func(code int) bool {
		err := NewDeviceError(Condition(code), "")
		return Classify(err) == Classify(err)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestErrorCondition(t *testing.T) {
	assert.Equal(t, CondUnknown, ErrorCondition(nil))
	assert.Equal(t, CondUnknown, ErrorCondition(errors.New("boom")))
	assert.Equal(t, CondNotConnected, ErrorCondition(NewDeviceError(CondNotConnected, "")))
	assert.Equal(t, CondNotConnected,
		ErrorCondition(fmt.Errorf("wrap: %w", NewDeviceError(CondNotConnected, ""))))
}

func TestDeviceErrorMessage(t *testing.T) {
	assert.Equal(t, "device error [nuc_in_progress]",
		NewDeviceError(CondNUCInProgress, "").Error())
	assert.Equal(t, "device error [invalid_login]: bad certificate",
		NewDeviceError(CondInvalidLogin, "bad certificate").Error())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "fatal", ClassFatal.String())
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "ignorable", ClassIgnorable.String())
	assert.Equal(t, "class(42)", ErrorClass(42).String())

	assert.Equal(t, "condition(42)", Condition(42).String())
}
