// SPDX-FileCopyrightText: 2025 The gpumon Authors
// SPDX-License-Identifier: Apache-2.0

package nvidia

import (
	"fmt"
	"sync"

	"github.com/jaypipes/pcidb"
)

var (
	pciOnce sync.Once
	pciDB   *pcidb.PCIDB
	pciErr  error
)

// lookupProductName resolves NVML's combined PCI device id (device id in
// the high 16 bits, vendor id in the low 16) to a product name from the PCI
// ID database. Returns "" when the database is unavailable or the id is
// unknown; enrichment is strictly best-effort.
func lookupProductName(pciDeviceID uint32) string {
	db := loadPCIDatabase()
	if db == nil {
		return ""
	}

	vendorID := pciDeviceID & 0xffff
	deviceID := pciDeviceID >> 16
	productKey := fmt.Sprintf("%04x%04x", vendorID, deviceID)

	product, ok := db.Products[productKey]
	if !ok || product == nil {
		return ""
	}
	return product.Name
}

func loadPCIDatabase() *pcidb.PCIDB {
	pciOnce.Do(func() {
		pciDB, pciErr = pcidb.New()
	})
	if pciErr != nil || pciDB == nil {
		return nil
	}
	return pciDB
}
