// Command vapidkeys prints a fresh VAPID key pair for Web Push as .env lines.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	subject := flag.String("subject", "mailto:admin@kinship.local", "contact URI sent to push services")
	flag.Parse()

	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("generate vapid keys: %v", err)
	}

	fmt.Fprintln(os.Stderr, "# add to .env")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\nVAPID_SUBJECT=%s\n", public, private, *subject)
}
