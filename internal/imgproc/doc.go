// Package imgproc holds the pixel-level pieces of the inpainting pipeline:
//
//   - codec.go: Decode/DecodeGray/Encode and format sniffing of uploads.
//   - metadata.go: EXIF and ICC passthrough for JPEG and PNG containers.
//   - resize.go: ResizeToLimit, the geometry normalizer shared by image and mask.
//   - compose.go: ComposeAlpha, the single alpha recombination routine.
//   - mask.go: mask binarization and bounding boxes.
//   - buffer.go: channel-order helpers.
//
// Colour buffers are *image.NRGBA whose alpha is forced opaque; transparency
// travels separately as an *image.Gray until ComposeAlpha puts it back. Masks
// are *image.Gray with values 0 or 255.
package imgproc
