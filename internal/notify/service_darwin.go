//go:build darwin && cgo

package notify

/*
#cgo CFLAGS: -fobjc-arc -mmacosx-version-min=11.0
#cgo LDFLAGS: -framework Foundation -framework AppKit -framework UserNotifications
#include <stdlib.h>
#include "bridge_darwin.h"
*/
import "C"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// userNotificationsService talks to the UserNotifications framework. It
// needs the process to run from an app bundle; see internal/launch.
type userNotificationsService struct {
	mu           sync.Mutex
	onActivation func(Activation)
}

// The delegate has no user data pointer, so the exported callback finds the
// service through this.
var activeUserNotifications atomic.Pointer[userNotificationsService]

func newPlatformService(ServiceConfig) (Service, error) {
	if C.alr_available() == 0 {
		return nil, fmt.Errorf("%w: UserNotifications needs the process to run from an app bundle", ErrUnsupportedPlatform)
	}
	s := &userNotificationsService{}
	activeUserNotifications.Store(s)
	C.alr_install_delegate()
	return s, nil
}

func (s *userNotificationsService) Name() string { return "UserNotifications" }

// App icon overrides and the dropdown label have no equivalent in this API.
func (s *userNotificationsService) Capabilities() Capabilities {
	return Capabilities{
		ContentImage:    true,
		Actions:         true,
		MultipleActions: true,
		Reply:           true,
		Sound:           true,
		IgnoreDnD:       true,
	}
}

func (s *userNotificationsService) AuthorizationStatus(context.Context) (AuthStatus, error) {
	return AuthStatus(C.alr_authorization_status()), nil
}

func (s *userNotificationsService) RequestAuthorization(context.Context) (bool, error) {
	var cerr *C.char
	granted := C.alr_request_authorization(&cerr) != 0
	if cerr != nil {
		defer C.free(unsafe.Pointer(cerr))
		return granted, errors.New(C.GoString(cerr))
	}
	return granted, nil
}

func (s *userNotificationsService) Deliver(_ context.Context, req Request) (Handle, error) {
	var strs cStrings
	defer strs.free()

	creq := C.alr_request{
		token:             strs.add(req.Token),
		title:             strs.add(req.Title),
		subtitle:          strs.add(req.Subtitle),
		body:              strs.add(req.Message),
		reply_placeholder: strs.add(req.ReplyPlaceholder),
		sound:             strs.add(req.Sound),
		group:             strs.add(req.Group),
		content_image:     strs.add(req.ContentImage),
	}
	if req.IgnoreDnD {
		creq.ignore_dnd = 1
	}
	if n := len(req.Actions); n > 0 {
		creq.actions = strs.array(req.Actions)
		creq.action_count = C.int(n)
	}

	if cerr := C.alr_deliver(&creq); cerr != nil {
		defer C.free(unsafe.Pointer(cerr))
		return Handle{}, fmt.Errorf("%w: %s", ErrServiceRejected, C.GoString(cerr))
	}
	return Handle{Token: req.Token, PlatformID: req.Token, DeliveredAt: time.Now()}, nil
}

type deliveredRecord struct {
	Token       string  `json:"token"`
	Group       string  `json:"group"`
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle"`
	Message     string  `json:"message"`
	DeliveredAt float64 `json:"deliveredAt"`
}

func (s *userNotificationsService) Delivered(context.Context) ([]Summary, error) {
	var cerr *C.char
	cjson := C.alr_delivered_json(&cerr)
	if cjson == nil {
		if cerr != nil {
			defer C.free(unsafe.Pointer(cerr))
			return nil, errors.New(C.GoString(cerr))
		}
		return nil, errors.New("listing delivered notifications failed")
	}
	defer C.free(unsafe.Pointer(cjson))

	var records []deliveredRecord
	if err := json.Unmarshal([]byte(C.GoString(cjson)), &records); err != nil {
		return nil, fmt.Errorf("decoding delivered notifications: %w", err)
	}
	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, Summary{
			Token:       r.Token,
			Group:       r.Group,
			Title:       r.Title,
			Subtitle:    r.Subtitle,
			Message:     r.Message,
			DeliveredAt: summaryTime(r.DeliveredAt),
		})
	}
	return out, nil
}

func (s *userNotificationsService) Withdraw(_ context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	var strs cStrings
	defer strs.free()
	C.alr_withdraw(strs.array(tokens), C.int(len(tokens)))
	return nil
}

func (s *userNotificationsService) OnActivation(fn func(Activation)) {
	s.mu.Lock()
	s.onActivation = fn
	s.mu.Unlock()
}

func (s *userNotificationsService) Close() error {
	activeUserNotifications.CompareAndSwap(s, nil)
	return nil
}

// RunMainLoop runs the AppKit event loop. Call it from the main goroutine
// with the OS thread locked.
func (s *userNotificationsService) RunMainLoop() { C.alr_run_main_loop() }

func (s *userNotificationsService) StopMainLoop() { C.alr_stop_main_loop() }

//export alrActivation
func alrActivation(token *C.char, kind, index C.int, text *C.char, deliveredAt C.double) {
	s := activeUserNotifications.Load()
	if s == nil {
		return
	}
	s.mu.Lock()
	fn := s.onActivation
	s.mu.Unlock()
	if fn == nil {
		return
	}
	fn(Activation{
		Token:       C.GoString(token),
		Kind:        ActivationKind(kind),
		ActionIndex: int(index),
		Text:        C.GoString(text),
		DeliveredAt: summaryTime(float64(deliveredAt)),
	})
}

// cStrings owns C allocations made for one bridge call.
type cStrings struct {
	ptrs []unsafe.Pointer
}

// add returns a C copy of s, or nil for the empty string.
func (c *cStrings) add(s string) *C.char {
	if s == "" {
		return nil
	}
	p := C.CString(s)
	c.ptrs = append(c.ptrs, unsafe.Pointer(p))
	return p
}

func (c *cStrings) array(items []string) **C.char {
	size := C.size_t(len(items)) * C.size_t(unsafe.Sizeof((*C.char)(nil)))
	arr := C.malloc(size)
	c.ptrs = append(c.ptrs, arr)
	slots := unsafe.Slice((**C.char)(arr), len(items))
	for i, item := range items {
		p := C.CString(item)
		c.ptrs = append(c.ptrs, unsafe.Pointer(p))
		slots[i] = p
	}
	return (**C.char)(arr)
}

func (c *cStrings) free() {
	for _, p := range c.ptrs {
		C.free(p)
	}
	c.ptrs = nil
}
