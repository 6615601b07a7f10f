// File: cmd/nvmectl/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// nvmectl is a small demonstration harness exercising the controller's
// public API the way a real management tool would: attach, bring up,
// dump registers, list namespaces, fetch a log page, then detach. It
// is not the management/IOCTL surface itself, just proof the surface
// it wraps is sufficient to build one with.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/momentics/nvme-core/ctrlr"
)

func main() {
	resource := flag.String("resource", "/sys/bus/pci/devices/0000:01:00.0/resource0", "path to the device's mapped BAR resource file")
	vfioGroup := flag.String("vfio-group", "", "path to the device's bound vfio group (e.g. /dev/vfio/12); empty disables IOMMU mapping")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	c := ctrlr.New(ctrlr.Config{
		Name:          "nvmectl",
		ResourcePath:  *resource,
		VFIOGroupPath: *vfioGroup,
	})

	if err := c.Attach(); err != nil {
		log.Fatalf("nvmectl: attach: %v", err)
	}
	if err := c.Bootstrap(); err != nil {
		log.Fatalf("nvmectl: bootstrap: %v", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			log.Printf("nvmectl: stop: %v", err)
		}
	}()

	switch flag.Arg(0) {
	case "dump-registers":
		cmdDumpRegisters(c)
	case "list-namespaces":
		cmdListNamespaces(c)
	case "identify":
		cmdIdentify(c)
	case "get-log":
		cmdGetLog(c, flag.Args()[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nvmectl [-resource path] [-vfio-group path] <dump-registers|list-namespaces|identify|get-log [nsid] [logid]>")
}

func cmdDumpRegisters(c *ctrlr.Controller) {
	regs := c.DumpRegisters()
	fmt.Printf("CAP:  %#016x\n", regs.CAPRaw)
	fmt.Printf("VS:   %#08x\n", regs.VS)
	fmt.Printf("CSTS: %#08x\n", regs.CSTS)
	fmt.Printf("CC:   %#08x\n", regs.CC)
}

func cmdIdentify(c *ctrlr.Controller) {
	id := c.Identity()
	fmt.Printf("Vendor:   %s\n", id.Vendor)
	fmt.Printf("Model:    %s\n", id.Model)
	fmt.Printf("Serial:   %s\n", id.Serial)
	fmt.Printf("Firmware: %s\n", id.Firmware)
	fmt.Printf("IEEE OUI: %02x:%02x:%02x\n", id.IEEEOUI[0], id.IEEEOUI[1], id.IEEEOUI[2])
	fmt.Printf("Max AEN:  %d\n", id.MaxAEN)
	fmt.Printf("NS count: %d\n", id.NSCount)
}

func cmdListNamespaces(c *ctrlr.Controller) {
	for nsid, ns := range c.Namespaces() {
		fmt.Printf("nsid=%d blocks=%d lba_shift=%d online=%t meta=%d eui64=%x\n",
			nsid, ns.BlockCount, ns.LBAShift, ns.Online, ns.MetaSize, ns.EUI64)
	}
}

func cmdGetLog(c *ctrlr.Controller, args []string) {
	logID := uint8(ctrlr.LogPageSMARTHealth)
	nsid := uint32(0xFFFFFFFF)
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%x", &nsid)
	}
	if len(args) > 1 {
		var v uint64
		fmt.Sscanf(args[1], "%x", &v)
		logID = uint8(v)
	}

	page, err := c.GetLogPage(nsid, logID)
	if err != nil {
		log.Fatalf("nvmectl: get-log: %v", err)
	}
	fmt.Printf("log page %#x (%d bytes):\n", logID, len(page))
	for i := 0; i < len(page) && i < 64; i += 16 {
		fmt.Printf("%04x: % x\n", i, page[i:i+16])
	}
}
