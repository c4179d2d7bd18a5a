package shaders

import (
	_ "embed"
)

//go:embed preprocess.wgsl
var PreprocessWGSL string

//go:embed sort.wgsl
var SortWGSL string

//go:embed render.wgsl
var RenderWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed text.wgsl
var TextWGSL string
