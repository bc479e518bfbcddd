// Generates the random secrets the ruby service wants at startup:
// SECRET_KEY for service tokens and WEBHOOK_SECRET for the payment
// gateway. Output is ready to paste into an .env file.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const secretBytesLen = 32

func main() {
	for _, name := range []string{"SECRET_KEY", "WEBHOOK_SECRET"} {
		b := make([]byte, secretBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating %s: %v", name, err)
			os.Exit(1)
		}

		fmt.Printf("%s=%s\n", name, hex.EncodeToString(b))
	}
}
