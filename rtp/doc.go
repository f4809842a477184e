// Package rtp carries encoded video frames over RTP and picture-loss
// feedback over RTCP.
//
// A Stream pairs a Transport with outbound sequence numbering and SSRC
// management, and funnels inbound packets through a small sequence-
// ordered buffer before handing them to the receiver callback. The
// payload protocols above this package rely on packets arriving in
// sequence order; the buffer supplies that ordering, dropping
// duplicates and late arrivals and abandoning gaps that outlive a
// timeout.
//
// RTCP handling is limited to what a video call needs for loss
// recovery: building and parsing Full Intra Request and Picture Loss
// Indication packets. Wire formats come from pion/rtp and pion/rtcp.
//
// Two Transport implementations ship with the package: UDPTransport
// for real use and PipeTransport for tests and examples.
package rtp
