package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/dailydrop/server/internal/auth"
)

func main() {
	bits := flag.Int("bits", 2048, "RSA key size")
	flag.Parse()

	if *bits < 2048 {
		log.Fatalf("Invalid key size: %d. Must be at least 2048", *bits)
	}

	pub, priv, err := auth.GenerateKeyPair(*bits)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Printf("PUBLIC_KEY=%s\n", pub)
	fmt.Printf("PRIVATE_KEY=%s\n", priv)
	fmt.Println("\nAdd both lines to your .env file. Replacing the pair signs every user out.")
}
