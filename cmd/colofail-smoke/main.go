package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/0xReLogic/colofail/testutil"
)

func main() {
	addr := pflag.String("addr", "http://localhost:8787", "gate base URL")
	country := pflag.String("country", "CA", "country code to fail")
	delay := pflag.Duration("delay", 500*time.Millisecond, "delay injected before failing")
	header := pflag.String("country-header", "CF-IPCountry", "header carrying the resolved country")
	to := pflag.Duration("timeout", 0, "per-request timeout (default delay+10s)")
	pflag.Parse()

	err := testutil.RunSmokeScenario(context.Background(), testutil.SmokeConfig{
		BaseURL:       *addr,
		Country:       *country,
		Delay:         *delay,
		CountryHeader: *header,
		Timeout:       *to,
		Logf: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stdout, format+"\n", args...)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Smoke test OK")
}
