// Command ircamctl is a thin demo wiring of the controller package:
// it opens the first matching device, optionally brings up IR mode,
// and periodically logs the latest clusters or image size. It is not
// part of the driver core.
package main

import (
	"flag"
	"log"
	"time"

	"ircam/config"
	"ircam/controller"
	"ircam/mcu"
)

func main() {
	productID := flag.Uint("product", uint(config.ProductIDRight), "HID product ID")
	serial := flag.String("serial", "", "device serial number (empty = first match)")
	irMode := flag.Int("ir-mode", 0, "IR mode: 4=pointing, 6=clustering, 7=image (0=disabled)")
	pointingThreshold := flag.Uint("pointing-threshold", 0, "pointingThreshold register value")
	flag.Parse()

	opts := config.Options{
		VendorID:  config.VendorID,
		ProductID: uint16(*productID),
		Serial:    *serial,
	}

	var registers *mcu.Registers
	if *irMode != 0 {
		mode := config.IRMode(*irMode)
		if !mode.Valid() {
			log.Fatalf("unsupported ir-mode: %d", *irMode)
		}
		opts.IRMode = &mode
		threshold := byte(*pointingThreshold)
		registers = &mcu.Registers{PointingThreshold: &threshold}
	}

	c, err := controller.New(opts, registers)
	if err != nil {
		log.Fatalf("controller.New: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	for range time.Tick(time.Second) {
		if img, ok := c.LatestImage(); ok {
			log.Printf("latest image: %d bytes", len(img))
			continue
		}
		if clusters, ok := c.LatestClusters(); ok {
			log.Printf("latest clusters: %d", len(clusters))
		}
	}
}
