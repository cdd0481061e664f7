// Command admin-passwd prints the bcrypt hash for ADMIN_PASSWORD_HASH.
//
//	echo -n 'segredo' | admin-passwd
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/podologia/agenda/libs/auth"
)

func main() {
	raw, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && raw == "" {
		fmt.Fprintln(os.Stderr, "read password from stdin:", err)
		os.Exit(1)
	}
	password := strings.TrimRight(raw, "\r\n")
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "password must have at least 8 characters")
		os.Exit(1)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
