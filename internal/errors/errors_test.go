/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNotLeaderBasic(t *testing.T) {
	err := NotLeader()
	if err.Code != ErrCodeNotLeader {
		t.Errorf("expected code %d, got %d", ErrCodeNotLeader, err.Code)
	}
	if err.Category != CategoryNotLeader {
		t.Errorf("expected category %s, got %s", CategoryNotLeader, err.Category)
	}
	if !strings.Contains(err.Error(), "not the leader") {
		t.Errorf("expected error message to mention leadership, got: %s", err.Error())
	}
}

func TestStaleTermDetail(t *testing.T) {
	err := StaleTerm(3, 7)
	if !strings.Contains(err.Error(), "message_term=3") || !strings.Contains(err.Error(), "own_term=7") {
		t.Errorf("expected detail to report both terms, got: %s", err.Error())
	}
}

func TestMalformedWrapsCause(t *testing.T) {
	cause := stderrors.New("unexpected byte")
	err := Malformed(cause)
	if !stderrors.Is(err, cause) {
		t.Errorf("expected Malformed to wrap cause via Unwrap")
	}
}

func TestIsMatchesByCategoryNotPayload(t *testing.T) {
	a := NotLeader()
	b := NotLeader().WithDetail("extra context that differs")
	if !stderrors.Is(a, b) {
		t.Errorf("expected RaftErrors of the same category to match via errors.Is")
	}
	if stderrors.Is(a, LogInconsistent(0, 0)) {
		t.Errorf("expected RaftErrors of different categories not to match")
	}
}

func TestIsNotLeaderHelper(t *testing.T) {
	if !IsNotLeader(NotLeader()) {
		t.Errorf("expected IsNotLeader to recognize NotLeader()")
	}
	if IsNotLeader(StaleTerm(1, 2)) {
		t.Errorf("expected IsNotLeader to reject StaleTerm")
	}
	if IsNotLeader(stderrors.New("plain error")) {
		t.Errorf("expected IsNotLeader to reject non-RaftError values")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(LogInconsistent(4, 6)) != ErrCodeLogInconsistent {
		t.Errorf("expected GetCode to return the LogInconsistent code")
	}
	if GetCode(stderrors.New("plain")) != 0 {
		t.Errorf("expected GetCode to return 0 for non-RaftError values")
	}
}
