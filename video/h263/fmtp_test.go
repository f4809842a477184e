package h263

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/mediacore/video"
)

func TestDecodeFmtp(t *testing.T) {
	tests := []struct {
		name string
		fmtp string
		want []SizeMPI
	}{
		{
			name: "Default offer",
			fmtp: "CIF=1;QCIF=1",
			want: []SizeMPI{
				{Fmt: FormatCIF, MPI: 1},
				{Fmt: FormatQCIF, MPI: 1},
			},
		},
		{
			name: "All sizes",
			fmtp: "SQCIF=1;QCIF=2;CIF=3;CIF4=4;CIF16=32",
			want: []SizeMPI{
				{Fmt: FormatSQCIF, MPI: 1},
				{Fmt: FormatQCIF, MPI: 2},
				{Fmt: FormatCIF, MPI: 3},
				{Fmt: Format4CIF, MPI: 4},
				{Fmt: Format16CIF, MPI: 32},
			},
		},
		{
			name: "Lowercase names",
			fmtp: "cif=2;qcif=1",
			want: []SizeMPI{
				{Fmt: FormatCIF, MPI: 2},
				{Fmt: FormatQCIF, MPI: 1},
			},
		},
		{
			name: "Whitespace around pairs",
			fmtp: " CIF=1 ; QCIF=2 ",
			want: []SizeMPI{
				{Fmt: FormatCIF, MPI: 1},
				{Fmt: FormatQCIF, MPI: 2},
			},
		},
		{
			name: "Unknown attribute skipped",
			fmtp: "CUSTOM=1;QCIF=1",
			want: []SizeMPI{{Fmt: FormatQCIF, MPI: 1}},
		},
		{
			name: "MPI of zero skipped",
			fmtp: "CIF=0;QCIF=1",
			want: []SizeMPI{{Fmt: FormatQCIF, MPI: 1}},
		},
		{
			name: "MPI above thirty-two skipped",
			fmtp: "CIF=33;QCIF=1",
			want: []SizeMPI{{Fmt: FormatQCIF, MPI: 1}},
		},
		{
			name: "Missing value skipped",
			fmtp: "CIF;QCIF=1",
			want: []SizeMPI{{Fmt: FormatQCIF, MPI: 1}},
		},
		{
			name: "Empty",
			fmtp: "",
			want: nil,
		},
		{
			name: "Separators only",
			fmtp: ";;;",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Params
			DecodeFmtp(&p, tt.fmtp)

			assert.Equal(t, len(tt.want), p.N)
			for i, want := range tt.want {
				assert.Equal(t, want, p.Sizes[i])
			}
		})
	}
}

func TestDecodeFmtp_TableCapacity(t *testing.T) {
	var p Params
	DecodeFmtp(&p, strings.Repeat("QCIF=1;", 12))
	assert.Equal(t, len(p.Sizes), p.N)
}

func TestDecodeFmtp_NilParams(t *testing.T) {
	assert.NotPanics(t, func() {
		DecodeFmtp(nil, "CIF=1")
	})
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		fmt  Format
		want video.Size
	}{
		{fmt: FormatSQCIF, want: video.Size{Width: 128, Height: 96}},
		{fmt: FormatQCIF, want: video.Size{Width: 176, Height: 144}},
		{fmt: FormatCIF, want: video.Size{Width: 352, Height: 288}},
		{fmt: Format4CIF, want: video.Size{Width: 704, Height: 576}},
		{fmt: Format16CIF, want: video.Size{Width: 1408, Height: 1152}},
		{fmt: FormatOther, want: video.Size{}},
	}

	for _, tt := range tests {
		t.Run(tt.fmt.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fmt.Size())
		})
	}
}
