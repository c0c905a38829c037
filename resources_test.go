package cmdlist

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNewResourceSet(t *testing.T) {
	layout := NewResourceLayout(
		LayoutElement{Name: "Globals", Kind: KindUniformBuffer, Slot: 0},
		LayoutElement{Name: "Albedo", Kind: KindTextureRO, Slot: 0},
		LayoutElement{Name: "Linear", Kind: KindSampler, Slot: 0},
	)
	buf := &Buffer{Size: 64, Name: "globals"}
	tex := &Texture{Width: 4, Height: 4, Name: "albedo"}
	smp := &Sampler{Name: "linear"}

	tests := []struct {
		name      string
		layout    *ResourceLayout
		resources []BindableResource
		wantErr   bool
	}{
		{
			name:      "matching resources",
			layout:    layout,
			resources: []BindableResource{buf, tex, smp},
		},
		{
			name:      "buffer range in buffer slot",
			layout:    layout,
			resources: []BindableResource{BufferRange{Buffer: buf, Offset: 0, Size: 16}, tex, smp},
		},
		{
			name:      "nil layout",
			layout:    nil,
			resources: []BindableResource{buf, tex, smp},
			wantErr:   true,
		},
		{
			name:      "too few resources",
			layout:    layout,
			resources: []BindableResource{buf, tex},
			wantErr:   true,
		},
		{
			name:      "texture in buffer slot",
			layout:    layout,
			resources: []BindableResource{tex, tex, smp},
			wantErr:   true,
		},
		{
			name:      "sampler in texture slot",
			layout:    layout,
			resources: []BindableResource{buf, smp, smp},
			wantErr:   true,
		},
		{
			name:      "nil resource",
			layout:    layout,
			resources: []BindableResource{buf, nil, smp},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewResourceSet(tt.layout, tt.resources...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewResourceSet() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewResourceSet() failed: %v", err)
			}
			if set.Layout() != tt.layout {
				t.Error("Layout() does not return the construction layout")
			}
			if len(set.Resources()) != len(tt.resources) {
				t.Errorf("len(Resources()) = %d, want %d", len(set.Resources()), len(tt.resources))
			}
		})
	}
}

func TestMipSize(t *testing.T) {
	tests := []struct {
		base  uint32
		level uint32
		want  uint32
	}{
		{256, 0, 256},
		{256, 1, 128},
		{256, 8, 1},
		{256, 10, 1},
		{7, 1, 3},
		{1, 5, 1},
	}
	for _, tt := range tests {
		if got := MipSize(tt.base, tt.level); got != tt.want {
			t.Errorf("MipSize(%d, %d) = %d, want %d", tt.base, tt.level, got, tt.want)
		}
	}
}

func TestTextureRenderable(t *testing.T) {
	tests := []struct {
		name string
		tex  Texture
		want bool
	}{
		{
			name: "render attachment",
			tex:  Texture{Usage: gputypes.TextureUsageRenderAttachment},
			want: true,
		},
		{
			name: "sampled only",
			tex:  Texture{Usage: gputypes.TextureUsageTextureBinding},
			want: false,
		},
		{
			name: "staging never renderable",
			tex:  Texture{Usage: gputypes.TextureUsageRenderAttachment, Staging: true},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tex.Renderable(); got != tt.want {
				t.Errorf("Renderable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateBufferRegion(t *testing.T) {
	tests := []struct {
		name    string
		offset  uint64
		size    uint64
		dstSize uint64
		wantErr error
	}{
		{name: "aligned interior write", offset: 4, size: 8, dstSize: 64},
		{name: "whole buffer odd size", offset: 0, size: 13, dstSize: 13},
		{name: "misaligned offset", offset: 3, size: 8, dstSize: 64, wantErr: ErrOffsetNotAligned},
		{name: "misaligned partial size", offset: 4, size: 7, dstSize: 64, wantErr: ErrSizeNotAligned},
		{name: "out of bounds", offset: 60, size: 8, dstSize: 64, wantErr: ErrRangeOutOfBounds},
		{name: "exact end", offset: 56, size: 8, dstSize: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBufferRegion(tt.offset, tt.size, tt.dstSize)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateBufferRegion() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateBufferRegion() failed: %v", err)
			}
		})
	}
}
