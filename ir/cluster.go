// Package ir implements the IR data pipeline: fragment reassembly for
// IMAGE mode (pipeline.go) and cluster-descriptor parsing for
// POINTING/CLUSTERING mode (this file). Grounded on
// original_source/pyjoycon/joycon.py's get_ir_cluster/get_ir_clusters,
// translated from its index-arithmetic loop into a small parser type
// in the style of the teacher's ecus/k701.go DID-field extraction.
package ir

import (
	"encoding/binary"

	"ircam/config"
)

// ClusterDescriptor is one parsed 16-byte IR cluster record: u16
// brightness, pixel count, centre-of-mass Y/X (units of 1/64 pixel),
// and the y/x bounding range, all little-endian.
type ClusterDescriptor struct {
	Raw [16]byte
}

// Brightness is the cluster's reported brightness.
func (c ClusterDescriptor) Brightness() uint16 { return binary.LittleEndian.Uint16(c.Raw[0:2]) }

// PixelCount is the number of pixels the MCU attributed to this cluster.
func (c ClusterDescriptor) PixelCount() uint16 { return binary.LittleEndian.Uint16(c.Raw[2:4]) }

// CentroidY is the cluster's centre-of-mass row, in units of 1/64 pixel.
func (c ClusterDescriptor) CentroidY() uint16 { return binary.LittleEndian.Uint16(c.Raw[4:6]) }

// CentroidX is the cluster's centre-of-mass column, in units of 1/64 pixel.
func (c ClusterDescriptor) CentroidX() uint16 { return binary.LittleEndian.Uint16(c.Raw[6:8]) }

// YStart is the cluster's bounding box top row.
func (c ClusterDescriptor) YStart() uint16 { return binary.LittleEndian.Uint16(c.Raw[8:10]) }

// YEnd is the cluster's bounding box bottom row.
func (c ClusterDescriptor) YEnd() uint16 { return binary.LittleEndian.Uint16(c.Raw[10:12]) }

// XStart is the cluster's bounding box left column.
func (c ClusterDescriptor) XStart() uint16 { return binary.LittleEndian.Uint16(c.Raw[12:14]) }

// XEnd is the cluster's bounding box right column.
func (c ClusterDescriptor) XEnd() uint16 { return binary.LittleEndian.Uint16(c.Raw[14:16]) }

// clusterStart is the byte offset of the first cluster record inside
// a standard input report.
const clusterStart = 61

// clusterSize is the fixed width of one cluster record.
const clusterSize = 16

// irPayloadEnd is the exclusive end of the 300-byte IR payload region.
const irPayloadEnd = 359

// rowDelimiterOffsets are the byte offsets, relative to clusterStart,
// of the per-row delimiter bytes POINTING mode interleaves between
// groups of cluster records. CLUSTERING mode has no delimiters.
var rowDelimiterOffsets = [5]int{48, 97, 146, 195, 244}

// ParseClusters extracts every non-empty cluster descriptor from a
// standard input report's IR payload region.
func ParseClusters(report []byte, mode config.IRMode) []ClusterDescriptor {
	skip := map[int]bool{}
	if mode == config.IRPointing {
		for _, off := range rowDelimiterOffsets {
			skip[clusterStart+off] = true
		}
	}

	var clusters []ClusterDescriptor
	pos := clusterStart
	for pos+clusterSize <= irPayloadEnd && pos+clusterSize <= len(report) {
		if skip[pos] {
			pos++
			continue
		}
		var c ClusterDescriptor
		copy(c.Raw[:], report[pos:pos+clusterSize])
		if c.Raw[0] != 0 || c.Raw[1] != 0 {
			clusters = append(clusters, c)
		}
		pos += clusterSize
	}
	return clusters
}
