// Copyright 2026 The Ghostgate Authors
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

// ghostctl is the client-side companion tool. It generates and recovers the
// device-held derivation secret and computes ghost identifiers locally. None
// of these operations talk to the authority: that separation is the whole
// point of the derivation contract.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/ghostgate/ghostgate/internal/pseudonym"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen()
	case "derive":
		err = runDerive(os.Args[2:])
	case "recover":
		err = runRecover(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ghostctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  ghostctl keygen                         generate a derivation secret and recovery artifact
  ghostctl derive <user-id> <artifact>    compute the ghost identifier for a user
  ghostctl recover <artifact>             validate an artifact and print the secret`)
}

func runKeygen() error {
	secret, err := pseudonym.NewSecret()
	if err != nil {
		return err
	}
	artifact, err := pseudonym.ExportArtifact(secret)
	if err != nil {
		return err
	}
	fmt.Printf("secret:   %s\n", base64.RawURLEncoding.EncodeToString(secret))
	fmt.Printf("artifact: %s\n", artifact)
	fmt.Fprintln(os.Stderr, "store the artifact offline; it is the only way to rebuild this pseudonym on a new device")
	return nil
}

func runDerive(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("derive requires <user-id> and <artifact>")
	}
	secret, err := pseudonym.ImportArtifact(args[1])
	if err != nil {
		return err
	}
	ghost, err := pseudonym.Derive(args[0], secret)
	if err != nil {
		return err
	}
	fmt.Println(ghost)
	return nil
}

func runRecover(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("recover requires <artifact>")
	}
	secret, err := pseudonym.ImportArtifact(args[0])
	if err != nil {
		return err
	}
	fmt.Println(base64.RawURLEncoding.EncodeToString(secret))
	return nil
}
