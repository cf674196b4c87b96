// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package locate

import (
	"fmt"

	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// Advice returns the fix-it text for a source file without tests,
// naming the conventional location for its language.
func Advice(source string) string {
	stem, _ := SplitName(source)
	if stem == "" {
		stem = source
	}

	switch patterns.DetectLanguage(source) {
	case patterns.LanguageRust:
		return fmt.Sprintf("Add tests in tests/%s_tests.rs or update inline #[cfg(test)] block", stem)
	case patterns.LanguageGo:
		return fmt.Sprintf("Add tests in %s_test.go", stem)
	case patterns.LanguageJavaScript:
		return fmt.Sprintf("Add tests in %s.test.ts or __tests__/%s.test.ts", stem, stem)
	case patterns.LanguagePython:
		return fmt.Sprintf("Add tests in test_%s.py or tests/test_%s.py", stem, stem)
	case patterns.LanguageZig:
		return fmt.Sprintf("Add a test block to %s.zig or tests/%s_test.zig", stem, stem)
	case patterns.LanguageD:
		return fmt.Sprintf("Add a unittest block to %s.d", stem)
	default:
		return fmt.Sprintf("Add tests for %s", stem)
	}
}
