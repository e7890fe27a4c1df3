package device

// WGSL compute shaders for accelerated layer kernels.
// Using string constants instead of embed for simplicity.

// ShaderConv2DForward computes one output element per thread for a
// unit-stride convolution with bias. Dims packed into the uniform:
// inWidth, inHeight, inDepth, winW, winH, outWidth, outHeight, outDepth.
const ShaderConv2DForward = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> output: array<f32>;

struct Params {
    in_width: u32,
    in_height: u32,
    in_depth: u32,
    win_width: u32,
    win_height: u32,
    out_width: u32,
    out_height: u32,
    out_depth: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    let out_area = params.out_width * params.out_height;
    if (idx >= out_area * params.out_depth) {
        return;
    }

    let o = idx / out_area;
    let rem = idx % out_area;
    let y = rem / params.out_width;
    let x = rem % params.out_width;

    var sum: f32 = 0.0;
    for (var inc: u32 = 0u; inc < params.in_depth; inc = inc + 1u) {
        let w_base = (params.in_depth * o + inc) * params.win_width * params.win_height;
        let in_base = inc * params.in_width * params.in_height;
        for (var wy: u32 = 0u; wy < params.win_height; wy = wy + 1u) {
            for (var wx: u32 = 0u; wx < params.win_width; wx = wx + 1u) {
                let w = weights[w_base + wy * params.win_width + wx];
                let v = input[in_base + (y + wy) * params.in_width + (x + wx)];
                sum = sum + w * v;
            }
        }
    }
    output[idx] = sum + bias[o];
}
`

// ShaderFullyForward computes one output neuron per thread for a dense
// layer with bias. Dims packed into the uniform: inSize, outSize.
const ShaderFullyForward = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> output: array<f32>;

struct Params {
    in_size: u32,
    out_size: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.out_size) {
        return;
    }

    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.in_size; i = i + 1u) {
        sum = sum + weights[idx * params.in_size + i] * input[i];
    }
    output[idx] = sum + bias[idx];
}
`
