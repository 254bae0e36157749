//go:build ignore

// This file generates Ed25519 key pairs for signing offline licence keys.
// Run with: go run generate_keys.go
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

func main() {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key pair: %v\n", err)
		os.Exit(1)
	}

	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKey,
	})
	if err := os.WriteFile("licence_public_key.pem", publicPEM, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write public key: %v\n", err)
		os.Exit(1)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKey,
	})
	if err := os.WriteFile("licence_private_key.pem", privatePEM, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write private key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Generated licence_public_key.pem and licence_private_key.pem")
	fmt.Printf("TALLY_LICENCE_PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(publicKey))
	fmt.Println("Keep licence_private_key.pem with the key issuing tool only.")
}
