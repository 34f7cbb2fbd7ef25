// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package main is the entry point for the gemini-cli chat client.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
