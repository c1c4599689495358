//go:build js && wasm

package settings

import (
	"fmt"
	"syscall/js"
)

// DetectCapabilities reports window.localStorage when the page exposes it.
// Browsers that block storage throw on access, which syscall/js turns into
// a panic; that case reports no capabilities.
func DetectCapabilities() (caps Capabilities) {
	defer func() {
		if recover() != nil {
			caps = Capabilities{}
		}
	}()
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return Capabilities{}
	}
	return Capabilities{LocalStorage: jsLocalStorage{v: ls}}
}

type jsLocalStorage struct {
	v js.Value
}

func (s jsLocalStorage) GetItem(key string) (val string, ok bool, err error) {
	defer recoverJS(&err)
	r := s.v.Call("getItem", key)
	if r.IsNull() || r.IsUndefined() {
		return "", false, nil
	}
	return r.String(), true, nil
}

// SetItem reports QuotaExceededError and SecurityError as errors.
func (s jsLocalStorage) SetItem(key, value string) (err error) {
	defer recoverJS(&err)
	s.v.Call("setItem", key, value)
	return nil
}

func recoverJS(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if jsErr, ok := r.(js.Error); ok {
		*err = jsErr
		return
	}
	*err = fmt.Errorf("localStorage: %v", r)
}
