// Copyright (c) 2025, The Snail Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Anonymizer maps hostnames through a one-way, run-stable transform.
// The HMAC key is random per run, so the same raw hostname produces the
// same anonymized value within one report while remaining unrecoverable
// and unlinkable across runs.
type Anonymizer struct {
	key []byte
}

// NewAnonymizer creates an anonymizer with a fresh random key.
func NewAnonymizer() *Anonymizer {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// crypto/rand failure means the platform RNG is broken; there is
		// no privacy-preserving fallback worth inventing here.
		panic("hostid anonymizer: " + err.Error())
	}
	return &Anonymizer{key: key}
}

// NewAnonymizerWithKey creates an anonymizer with a fixed key, for tests
// that need reproducible output.
func NewAnonymizerWithKey(key []byte) *Anonymizer {
	return &Anonymizer{key: key}
}

// Anonymize returns the stable pseudonym for a hostname.
func (a *Anonymizer) Anonymize(hostname string) string {
	if hostname == "" {
		return ""
	}
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(hostname))
	return "host-" + hex.EncodeToString(mac.Sum(nil))[:12]
}
