// Copyright 2025 walteh LLC
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

package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogFileOperation(t *testing.T) {
	tests := []struct {
		name       string
		op         FileOperation
		wantSymbol string
	}{
		{
			name:       "new_file",
			op:         FileOperation{Path: "README.md", Type: "file", Status: "created", IsNew: true},
			wantSymbol: "✓",
		},
		{
			name:       "overwritten_file",
			op:         FileOperation{Path: "README.md", Type: "file", Status: "overwritten", IsModified: true},
			wantSymbol: "⟳",
		},
		{
			name:       "preserved_file",
			op:         FileOperation{Path: "README.md", Type: "file", Status: "preserved", IsPreserved: true},
			wantSymbol: "•",
		},
		{
			name:       "failed_file",
			op:         FileOperation{Path: "README.md", Type: "file", Status: "failed", IsFailed: true},
			wantSymbol: "✗",
		},
		{
			name:       "skipped_file",
			op:         FileOperation{Path: "huge.bin", Type: "file", Status: "skipped"},
			wantSymbol: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, zerolog.Disabled)

			logger.LogFileOperation(context.Background(), tt.op)

			out := buf.String()
			assert.Contains(t, out, tt.wantSymbol)
			assert.Contains(t, out, tt.op.Path)
			assert.Contains(t, out, tt.op.Status)
		})
	}
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.Disabled)

	logger.Header("syncing template")
	logger.Success("done")
	logger.Warning("unresolved variable")
	logger.Error("write failed")
	logger.Infof("%d files", 3)

	out := buf.String()
	assert.Contains(t, out, "structsync")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "unresolved variable")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "3 files")
}
