//go:build darwin && cgo

package identity

/*
#cgo CFLAGS: -fobjc-arc -mmacosx-version-min=11.0
#cgo LDFLAGS: -framework Foundation
#include <stdlib.h>
#include "identity_darwin.h"
*/
import "C"

import "unsafe"

// impersonate swaps NSBundle's bundleIdentifier for one reporting id on the
// main bundle.
func impersonate(id string) bool {
	cid := C.CString(id)
	defer C.free(unsafe.Pointer(cid))
	return C.alr_impersonate_bundle(cid) != 0
}
