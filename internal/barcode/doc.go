// Package barcode finds the QR symbol in a camera frame and reports its
// four outer corners in image coordinates.
//
// Detection is done with gozxing's QR detector. The detector reports the
// centres of the three finder patterns and the symbol dimension, from
// which the outer corners are extrapolated. Decoding the payload is
// optional and only used for logging.
package barcode
