package integration

import (
	"fmt"
	"time"
)

// UniqueUsername generates a unique test username using a timestamp
func UniqueUsername(suffix string) string {
	return fmt.Sprintf("test%d%s", time.Now().UnixNano(), suffix)
}

// DeviceAgent builds a distinct user-agent string per logical device, so
// each one hashes to its own fingerprint
func DeviceAgent(device string) string {
	return "vouch-test-client/1.0 (" + device + ")"
}
