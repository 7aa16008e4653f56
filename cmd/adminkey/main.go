// Command adminkey prints the bcrypt hash to put in ADMIN_KEY_HASH.
//
//	go run ./cmd/adminkey 'my-admin-key'
//	echo -n 'my-admin-key' | go run ./cmd/adminkey
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	authUsecase "karmaterra-backend/internal/auth/usecase"
)

func main() {
	key, err := readKey()
	if err != nil {
		log.Fatal("Failed to read admin key:", err)
	}
	if key == "" {
		log.Fatal("Admin key must not be empty")
	}

	hash, err := authUsecase.HashAdminKey(key)
	if err != nil {
		log.Fatal("Failed to hash admin key:", err)
	}
	fmt.Println(hash)
}

func readKey() (string, error) {
	if len(os.Args) > 1 {
		return strings.TrimSpace(os.Args[1]), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
